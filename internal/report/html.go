package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Embed template files at compile time
//
//go:embed templates/template.html
var htmlTemplate string

//go:embed templates/styles.css
var cssContent string

// GenerateHTMLReport writes a single-file HTML report and returns its absolute path.
func GenerateHTMLReport(env *Envelope, outputPath string) (string, error) {
	content, err := RenderHTML(env)
	if err != nil {
		return "", err
	}

	absPath, err := GetOutputPath(outputPath)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write HTML file: %w", err)
	}

	return absPath, nil
}

// RenderHTML returns the report document with the stylesheet and the
// envelope JSON inlined.
func RenderHTML(env *Envelope) (string, error) {
	if env == nil || env.Diagnosis == nil {
		return "", fmt.Errorf("invalid report data: diagnosis cannot be nil")
	}

	jsonData, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report data: %w", err)
	}

	// json.Marshal escapes <, > and & so the payload cannot close the script tag
	content := strings.ReplaceAll(htmlTemplate, "{{CSS_CONTENT}}", cssContent)
	content = strings.ReplaceAll(content, "{{TITLE}}", html.EscapeString(env.Diagnosis.Category))
	content = strings.ReplaceAll(content, "{{JSON_DATA}}", string(jsonData))

	return content, nil
}

// GetOutputPath returns a safe output path, creating directories if needed
func GetOutputPath(path string) (string, error) {
	outputPath := path
	if outputPath == "" {
		outputPath = GetDefaultOutputPath()
	}

	if !strings.HasSuffix(strings.ToLower(outputPath), ".html") {
		outputPath += ".html"
	}

	absPath, err := filepath.Abs(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for %s: %w", outputPath, err)
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return absPath, nil
}

func GetDefaultOutputPath() string {
	return fmt.Sprintf("crash-diagnosis-%s.html", time.Now().Format("20060102_150405"))
}
