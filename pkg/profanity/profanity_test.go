package profanity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanMasksExtraWords(t *testing.T) {
	cleaner := New([]string{"Forbidden", " secret "})

	assert.Equal(t, "the f******* word", cleaner.Clean("the forbidden word"))
	assert.Equal(t, "s***** stash", cleaner.Clean("secret stash"))
}

func TestCleanKeepsFirstLetterAndPunctuation(t *testing.T) {
	cleaner := New([]string{"banana"})

	assert.Equal(t, "ripe b*****!", cleaner.Clean("ripe banana!"))
}

func TestCleanLeavesCleanTextUntouched(t *testing.T) {
	cleaner := New(nil)

	in := "a perfectly ordinary title"
	assert.Equal(t, in, cleaner.Clean(in))
	assert.Equal(t, "", cleaner.Clean(""))
}

func TestCleanNilReceiver(t *testing.T) {
	var cleaner *Cleaner
	assert.Equal(t, "anything", cleaner.Clean("anything"))
}
