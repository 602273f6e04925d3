package audio

import (
	"os"
	"path/filepath"
	"testing"
)

func writePresetDir(t *testing.T) string {
	dir := t.TempDir()
	files := map[string]string{
		"_list.json":  `{"items":[{"name":"soft"},{"name":"broken"}]}`,
		"soft.json":   `{"gain":0.25,"adsr":{"attack":0.2}}`,
		"broken.json": `{"gain":`,
		"hidden.json": `{"gain":0.9}`,
	}
	for name, content := range files {
		expectNoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestPresetManager(t *testing.T) {
	pm := newPresetManager(writePresetDir(t))
	list, err := pm.getList()
	expectNoError(t, err)
	expectEqual(t, len(list), 2)
	expectEqual(t, list[0].name, "soft")

	s := NewSynthesizer(44100, 4)
	expectNoError(t, pm.applyTo("soft", s))
	expectNearlyEqual(t, s.params.gain, 0.25)
	expectNearlyEqual(t, s.params.adsr.attack, 0.2)
	expectNearlyEqual(t, s.params.adsr.decay, 0.1)

	expectError(t, pm.applyTo("broken", s))
	// only listed presets can be loaded
	expectError(t, pm.applyTo("hidden", s))
	expectError(t, pm.applyTo("../soft", s))
	expectNearlyEqual(t, s.params.gain, 0.25)
}

func TestPresetManagerWithoutList(t *testing.T) {
	pm := newPresetManager(t.TempDir())
	_, err := pm.getList()
	expectError(t, err)
}

func TestPresetCommand(t *testing.T) {
	g := NewGroovebox(44100)
	g.AddInstrument(NewSynthesizer(44100, 4))
	a := NewAudio(g, nil, writePresetDir(t))
	defer a.Close()
	expectNoError(t, a.update([]string{"preset", "0", "soft"}))
	s, _ := g.Instrument(0)
	expectNearlyEqual(t, s.(*Synthesizer).params.gain, 0.25)
	expectError(t, a.update([]string{"preset", "1", "soft"}))
	expectError(t, a.update([]string{"preset", "0", "hidden"}))
}

func TestCents(t *testing.T) {
	expectNearlyEqual(t, cents(0), 1)
	expectNearlyEqual(t, cents(1200), 2)
	expectNearlyEqual(t, cents(-1200), 0.5)
}
