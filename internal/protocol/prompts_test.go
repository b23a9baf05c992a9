package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt(1920, 1080)
	require.Contains(t, p, "1920x1080")
	require.Contains(t, p, "1919")
	require.Contains(t, p, "1079")

	t.Run("deterministic", func(t *testing.T) {
		require.Equal(t, SystemPrompt(1920, 1080), SystemPrompt(1920, 1080))
	})
}

func TestActionPromptsEmbedArgumentsVerbatim(t *testing.T) {
	require.Contains(t, ExpectPrompt("main window with title 'Orders'"), `"main window with title 'Orders'"`)
	require.Contains(t, LocatePrompt("Save button"), `"Save button"`)
	require.Contains(t, ExtractPrompt("Total field"), `"Total field"`)
	require.Contains(t, ConditionPrompt("an error dialog"), `"an error dialog"`)

	sel := SelectOptionPrompt("Books", "Category")
	require.Contains(t, sel, `"Books"`)
	require.Contains(t, sel, `"Category"`)
}

func TestPromptsRequestTheProtocolTheParsersAccept(t *testing.T) {
	require.Contains(t, ExpectPrompt("x"), "MATCH")
	require.Contains(t, ExpectPrompt("x"), "NO_MATCH")
	require.Contains(t, ExpectPrompt("x"), "UNCERTAIN")
	require.Contains(t, LocatePrompt("x"), "NOT_FOUND")
	require.Contains(t, SelectOptionPrompt("v", "t"), "NOT_FOUND")
	require.Contains(t, ExtractPrompt("x"), "EMPTY")
	require.Contains(t, ExtractPrompt("x"), "NOT_FOUND")
	require.Contains(t, ConditionPrompt("x"), "YES")
	require.Contains(t, ConditionPrompt("x"), "NO")
}
