package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })
	return &buf
}

func TestInfoBlockSplitsLines(t *testing.T) {
	buf := captureOutput(t)

	InfoBlock("第一行\n第二行\n第三行")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "第一行")
	assert.Contains(t, lines[2], "第三行")
}

func TestInfoBlockIgnoresEmptyBlock(t *testing.T) {
	buf := captureOutput(t)

	InfoBlock("")
	InfoBlock("   \n\t\n  ")

	assert.Empty(t, buf.String())
}

func TestSetLevelFiltersDebug(t *testing.T) {
	buf := captureOutput(t)

	SetLevel("info")
	t.Cleanup(func() { SetLevel("info") })
	Debugf("不该出现 %d", 1)
	assert.Empty(t, buf.String())

	SetLevel("debug")
	Debugf("调试可见 %d", 2)
	assert.Contains(t, buf.String(), "调试可见 2")
}
