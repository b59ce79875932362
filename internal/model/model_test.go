package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeriveTitle(t *testing.T) {
	require.Equal(t, "Hi", DeriveTitle("Hi"))

	exact := strings.Repeat("b", 50)
	require.Equal(t, exact, DeriveTitle(exact))

	long := strings.Repeat("a", 60)
	require.Equal(t, strings.Repeat("a", 50)+"...", DeriveTitle(long))
}

func TestDeriveTitleCountsCharactersNotBytes(t *testing.T) {
	seed := strings.Repeat("你", 51)
	title := DeriveTitle(seed)
	require.Equal(t, strings.Repeat("你", 50)+"...", title)
}

func TestNormalizePrompt(t *testing.T) {
	require.Equal(t, "how do i rate limit?", NormalizePrompt("  How do I Rate Limit?  \n"))

	long := strings.Repeat("X", 150)
	require.Equal(t, strings.Repeat("x", 100), NormalizePrompt(long))
}

func TestGroupByDate(t *testing.T) {
	now := time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC)
	conv := func(id string, at time.Time) Conversation {
		return Conversation{ID: id, CreatedAt: at}
	}
	groups := GroupByDate([]Conversation{
		conv("today", now.Add(-time.Hour)),
		conv("midnight", time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)),
		conv("yesterday", now.Add(-24*time.Hour)),
		conv("two-weeks", now.Add(-14*24*time.Hour)),
		conv("ancient", now.Add(-90*24*time.Hour)),
	}, now)

	ids := func(cs []Conversation) []string {
		out := []string{}
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}
	require.Equal(t, []string{"today", "midnight"}, ids(groups.Today))
	require.Equal(t, []string{"yesterday"}, ids(groups.Last7Days))
	require.Equal(t, []string{"two-weeks"}, ids(groups.Last30Days))
	require.Equal(t, []string{"ancient"}, ids(groups.Older))
}

func TestValidators(t *testing.T) {
	require.True(t, RoleUser.Valid())
	require.False(t, Role("system").Valid())
	require.True(t, TemplateDraft.Valid())
	require.False(t, TemplateStatus("archived").Valid())
	require.True(t, ValidIssueType(""))
	require.True(t, ValidIssueType(IssueNotFactuallyCorrect))
	require.False(t, ValidIssueType("spam"))
}

func TestLocalTimeJSON(t *testing.T) {
	at := time.Date(2025, 3, 10, 15, 4, 5, 0, time.Local)
	b, err := json.Marshal(QueryRow{ID: "m1", CreatedAt: LocalTime(at)})
	require.NoError(t, err)
	require.Contains(t, string(b), `"created_at":"2025-03-10 15:04:05"`)

	var row QueryRow
	require.NoError(t, json.Unmarshal(b, &row))
	require.True(t, time.Time(row.CreatedAt).Equal(at))

	var bad LocalTime
	require.Error(t, bad.UnmarshalJSON([]byte(`"yesterday"`)))
}
