package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testProjectConfig = `corpus:
  path: corpus.jsonl
  categories: [sci.space, rec.autos, rec.sport.hockey]
index:
  workers: 2
logging:
  file: false
`

var testCorpusLines = []string{
	`{"id":"s1","title":"Shuttle launch","content":"The shuttle launch was delayed by weather at the cape","category":"sci.space"}`,
	`{"id":"s2","title":"Orbit insertion","content":"Orbital insertion burn for the probe went as planned","category":"sci.space"}`,
	`{"id":"a1","title":"Engine oil","content":"Change the engine oil every five thousand miles","category":"rec.autos"}`,
	`{"id":"a2","title":"Brake pads","content":"Squeaky brake pads usually need replacing","category":"rec.autos"}`,
	`{"id":"h1","title":"Playoff goalie","content":"The goalie stopped forty shots in the playoff game","category":"rec.sport.hockey"}`,
	`{"id":"h2","title":"Power play","content":"Their power play scored twice in the third period","category":"rec.sport.hockey"}`,
	`{"id":"x1","title":"Recipe","content":"Knead the dough for ten minutes","category":"misc.cooking"}`,
}

// newProject creates a project directory with a config and a corpus, and
// isolates the user config and log locations.
func newProject(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".topicsearch.yaml"), []byte(testProjectConfig), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus.jsonl"),
		[]byte(strings.Join(testCorpusLines, "\n")+"\n"), 0o644))
	return dir
}

// newIndexedProject is newProject followed by a successful index build.
func newIndexedProject(t *testing.T) string {
	t.Helper()
	dir := newProject(t)
	_, err := runCLI(t, "index", "--config-dir", dir)
	require.NoError(t, err)
	return dir
}

// runCLI executes the root command and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}
