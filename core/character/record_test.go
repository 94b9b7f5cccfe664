package character

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/adalundhe/fable/core/errors"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Elena Voss", "elena-voss"},
		{"elena voss", "elena-voss"},
		{"  D'Artagnan!  ", "d-artagnan"},
		{"Mr. O'Brien, Jr.", "mr-o-brien-jr"},
		{"—--—", ""},
		{"Zoë", "zo"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.name), "Slugify(%q)", tt.name)
	}
}

func TestNewRecordRequiresName(t *testing.T) {
	_, err := NewRecord("")
	assert.ErrorIs(t, err, coreerrors.ErrValidation)

	_, err = NewRecord("   ")
	assert.ErrorIs(t, err, coreerrors.ErrValidation)

	_, err = NewRecord("!!!")
	assert.ErrorIs(t, err, coreerrors.ErrValidation, "name with empty slug")
}

func TestApplySectionsKeyWise(t *testing.T) {
	rec, err := NewRecord("Elena Voss")
	require.NoError(t, err)

	require.NoError(t, rec.Apply(nil, map[string]string{
		"identity": "smuggler turned diplomat",
		"voice":    "clipped, ironic",
	}))
	require.NoError(t, rec.Apply(nil, map[string]string{
		"voice": "warmer after the armistice",
		"log":   "scene 3: the docks",
	}))

	// Matching keys replaced, new keys added, untouched keys kept.
	assert.Equal(t, "smuggler turned diplomat", rec.Sections["identity"])
	assert.Equal(t, "warmer after the armistice", rec.Sections["voice"])
	assert.Equal(t, "scene 3: the docks", rec.Sections["log"])
}

func TestApplyRejectsBlankSectionKey(t *testing.T) {
	rec, err := NewRecord("Elena Voss")
	require.NoError(t, err)

	err = rec.Apply(nil, map[string]string{"  ": "content"})
	assert.ErrorIs(t, err, coreerrors.ErrValidation)
}

func TestApplyMetadata(t *testing.T) {
	rec, err := NewRecord("Elena Voss")
	require.NoError(t, err)
	created := rec.Created

	role := "antagonist"
	tags := []string{"nobility", "spy"}
	require.NoError(t, rec.Apply(&MetadataPatch{Role: &role, Tags: &tags}, nil))

	assert.Equal(t, "antagonist", rec.Role)
	assert.Equal(t, []string{"nobility", "spy"}, rec.Tags)
	assert.Equal(t, created, rec.Created, "created must never change")
	assert.False(t, rec.Updated.Before(created))
}

func TestCloneIsDeep(t *testing.T) {
	rec, err := NewRecord("Elena Voss")
	require.NoError(t, err)
	require.NoError(t, rec.Apply(nil, map[string]string{"identity": "original"}))

	clone := rec.Clone()
	clone.Sections["identity"] = "changed"
	clone.Tags = append(clone.Tags, "new")

	assert.Equal(t, "original", rec.Sections["identity"])
	assert.Empty(t, rec.Tags)
}

func TestDeserializeRejectsNameless(t *testing.T) {
	_, err := DeserializeRecord([]byte(`{"role":"extra"}`))
	assert.ErrorIs(t, err, coreerrors.ErrValidation)
}
