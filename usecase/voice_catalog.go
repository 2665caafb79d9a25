package usecase

import (
	"sync"

	"github.com/satriahrh/suara/domain/entities"
)

// VoiceCatalog holds the voices offered by the synthesis provider and the
// one currently selected for playback.
type VoiceCatalog struct {
	mu       sync.RWMutex
	voices   []entities.Voice
	selected *entities.Voice
}

func NewVoiceCatalog() *VoiceCatalog {
	return &VoiceCatalog{voices: make([]entities.Voice, 0)}
}

// ListVoices returns the current voice set, which is empty until the
// provider has loaded.
func (c *VoiceCatalog) ListVoices() []entities.Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	voices := make([]entities.Voice, len(c.voices))
	copy(voices, c.voices)
	return voices
}

// Replace installs a freshly queried voice set. The first voice is selected
// when nothing was selected before; an existing selection is left alone.
func (c *VoiceCatalog) Replace(voices []entities.Voice) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.voices = make([]entities.Voice, len(voices))
	copy(c.voices, voices)

	if c.selected == nil && len(c.voices) > 0 {
		first := c.voices[0]
		c.selected = &first
	}
}

// Select selects the voice with the given name, or clears the selection when
// no voice has that name.
func (c *VoiceCatalog) Select(name string) *entities.Voice {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selected = nil
	for _, v := range c.voices {
		if v.Name == name {
			voice := v
			c.selected = &voice
			break
		}
	}
	return c.selectedLocked()
}

// Selected returns a copy of the selected voice, or nil
func (c *VoiceCatalog) Selected() *entities.Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selectedLocked()
}

func (c *VoiceCatalog) selectedLocked() *entities.Voice {
	if c.selected == nil {
		return nil
	}
	voice := *c.selected
	return &voice
}
