package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetFlags() {
	includePaths = nil
	systemPaths = nil
	defineFlags = nil
	undefineFlags = nil
	outputFile = ""
	configFile = ""
	debugTokens = false
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	for _, flagName := range []string{"include", "isystem", "define", "undefine",
		"output", "config", "debug-tokens"} {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("expected flag --%s to exist", flagName)
		}
	}
}

func TestPreprocessToStdout(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	mainFile := writeFile(t, tmpDir, "main.hlsl", "int x = 42;\n")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{mainFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v (stderr: %s)", err, errOut.String())
	}
	if !strings.Contains(out.String(), "int x = 42 ;") {
		t.Errorf("stdout = %q, want reformatted statement", out.String())
	}
}

func TestDefineFlag(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	mainFile := writeFile(t, tmpDir, "main.hlsl",
		"#ifdef FEATURE\nenabled\n#else\ndisabled\n#endif\n")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-D", "FEATURE=1", mainFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v (stderr: %s)", err, errOut.String())
	}
	if !strings.Contains(out.String(), "enabled") || strings.Contains(out.String(), "disabled") {
		t.Errorf("stdout = %q, want enabled arm", out.String())
	}
}

func TestUndefineFlag(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	mainFile := writeFile(t, tmpDir, "main.hlsl",
		"#ifdef FEATURE\nenabled\n#else\ndisabled\n#endif\n")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-D", "FEATURE", "-U", "FEATURE", mainFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "disabled") {
		t.Errorf("stdout = %q, want disabled arm", out.String())
	}
}

func TestConfigFile(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	mainFile := writeFile(t, tmpDir, "main.hlsl",
		"#ifdef FROM_CONFIG\nconfigured\n#endif\n")
	cfgFile := writeFile(t, tmpDir, "defines.yaml",
		"defines:\n  FROM_CONFIG: \"1\"\n")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--config", cfgFile, mainFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v (stderr: %s)", err, errOut.String())
	}
	if !strings.Contains(out.String(), "configured") {
		t.Errorf("stdout = %q, want config-defined arm", out.String())
	}
}

func TestConfigFileIncludePaths(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	incDir := filepath.Join(tmpDir, "inc")
	if err := os.MkdirAll(incDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, incDir, "shared.hlsl", "shared_content\n")
	mainFile := writeFile(t, tmpDir, "main.hlsl", "#include <shared.hlsl>\nafter\n")
	cfgFile := writeFile(t, tmpDir, "paths.yaml", "includePaths:\n  - "+incDir+"\n")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--config", cfgFile, mainFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v (stderr: %s)", err, errOut.String())
	}
	if !strings.Contains(out.String(), "shared_content") {
		t.Errorf("stdout = %q, want included content", out.String())
	}
}

func TestErrorsGoToStderrAndFailTheRun(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	mainFile := writeFile(t, tmpDir, "main.hlsl", "#error bad thing\nx;\n")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{mainFile})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error exit for a file with #error")
	}
	if !strings.Contains(errOut.String(), "#error bad thing") {
		t.Errorf("stderr = %q, want the #error message", errOut.String())
	}
	if !strings.Contains(errOut.String(), "main.hlsl:1:") {
		t.Errorf("stderr = %q, want file:line prefix", errOut.String())
	}
	// Surviving output is still produced.
	if !strings.Contains(out.String(), "x ;") {
		t.Errorf("stdout = %q, want surviving tokens", out.String())
	}
}

func TestOutputFile(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	mainFile := writeFile(t, tmpDir, "main.hlsl", "y;\n")
	outFile := filepath.Join(tmpDir, "out.i")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-o", outFile, mainFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("output file not written: %v", err)
	}
	if !strings.Contains(string(content), "y ;") {
		t.Errorf("output file = %q, want reformatted tokens", content)
	}
	if out.Len() != 0 {
		t.Errorf("stdout = %q, want empty when -o is used", out.String())
	}
}

func TestMissingInputFile(t *testing.T) {
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.hlsl")})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing input")
	}
	if !strings.Contains(errOut.String(), "shaderpp:") {
		t.Errorf("stderr = %q, want shaderpp-prefixed error", errOut.String())
	}
}

func TestDebugTokensDump(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	mainFile := writeFile(t, tmpDir, "main.hlsl", "x = 1;\n")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--debug-tokens", mainFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dump := errOut.String()
	if !strings.Contains(dump, `TOKEN: "x" (IDENTIFIER)`) {
		t.Errorf("dump = %q, want identifier line", dump)
	}
	if !strings.Contains(dump, `TOKEN: "1" (INT_LITERAL)`) {
		t.Errorf("dump = %q, want int literal line", dump)
	}
	if !strings.Contains(dump, `TOKEN: "\n" ('\n')`) {
		t.Errorf("dump = %q, want escaped newline line", dump)
	}
}
