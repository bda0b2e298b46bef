// Package prompts renders the prompts sent to the model for files and
// folders.
package prompts

import (
	"fmt"

	"github.com/tmc/langchaingo/prompts"
)

// Settings parameterize every prompt of a run.
type Settings struct {
	ProjectName    string
	ContentType    string
	TargetAudience string
	FilePrompt     string
	FolderPrompt   string
}

// Entry is one child of a folder as shown to the model.
type Entry struct {
	Name    string
	Summary string
}

// Builder renders prompts. Implementations must be deterministic so token
// estimates and model selection are reproducible.
type Builder interface {
	FileSummary(path, content string) (string, error)
	FileQuestions(path, content string) (string, error)
	FolderSummary(folderPath string, files, folders []Entry) (string, error)
}

const fileSummaryTemplate = `You are acting as a {{.contentType}} documentation expert for a project called {{.projectName}}.
Below is the {{.contentType}} from a file located at ` + "`{{.path}}`" + `.
{{.instructions}}
Do not say "this file is a part of the {{.projectName}} project".

{{.contentType}}:
{{.content}}

Response:
`

const fileQuestionsTemplate = `You are acting as a {{.contentType}} documentation expert for a project called {{.projectName}}.
Below is the {{.contentType}} from a file located at ` + "`{{.path}}`" + `.
What are 3 questions that a {{.audience}} might have about this {{.contentType}}?
Answer each question in 1-2 sentences. Output should be in markdown format.

{{.contentType}}:
{{.content}}

Questions and Answers:
`

const folderSummaryTemplate = `You are acting as a {{.contentType}} documentation expert for a project called {{.projectName}}.
You are currently documenting the folder located at ` + "`{{.path}}`" + `.

Below is a list of the files in this folder and a summary of the contents of each file:
{{range .files}}
Name: {{.Name}}
Summary: {{.Summary}}
{{else}}
(no documented files)
{{end}}
And here is a list of the subfolders in this folder and a summary of the contents of each subfolder:
{{range .folders}}
Name: {{.Name}}
Summary: {{.Summary}}
{{else}}
(no documented subfolders)
{{end}}
{{.instructions}}
Do not say "this folder is a part of the {{.projectName}} project".
Do not just list all of the files and folders.

Response:
`

// Templates renders prompts from langchaingo Go-template prompt templates.
type Templates struct {
	settings Settings
	file     prompts.PromptTemplate
	question prompts.PromptTemplate
	folder   prompts.PromptTemplate
}

// New returns the default Builder for s.
func New(s Settings) *Templates {
	return &Templates{
		settings: s,
		file: prompts.NewPromptTemplate(fileSummaryTemplate,
			[]string{"contentType", "projectName", "path", "instructions", "content"}),
		question: prompts.NewPromptTemplate(fileQuestionsTemplate,
			[]string{"contentType", "projectName", "path", "audience", "content"}),
		folder: prompts.NewPromptTemplate(folderSummaryTemplate,
			[]string{"contentType", "projectName", "path", "files", "folders", "instructions"}),
	}
}

// FileSummary renders the summary prompt for the file at path.
func (t *Templates) FileSummary(path, content string) (string, error) {
	return render(t.file, "file summary", map[string]any{
		"contentType":  t.settings.ContentType,
		"projectName":  t.settings.ProjectName,
		"path":         path,
		"instructions": t.settings.FilePrompt,
		"content":      content,
	})
}

// FileQuestions renders the question-generation prompt for the file at path.
func (t *Templates) FileQuestions(path, content string) (string, error) {
	return render(t.question, "file questions", map[string]any{
		"contentType": t.settings.ContentType,
		"projectName": t.settings.ProjectName,
		"path":        path,
		"audience":    t.settings.TargetAudience,
		"content":     content,
	})
}

// FolderSummary renders the roll-up prompt for a folder from its children.
func (t *Templates) FolderSummary(folderPath string, files, folders []Entry) (string, error) {
	return render(t.folder, "folder summary", map[string]any{
		"contentType":  t.settings.ContentType,
		"projectName":  t.settings.ProjectName,
		"path":         folderPath,
		"files":        files,
		"folders":      folders,
		"instructions": t.settings.FolderPrompt,
	})
}

func render(tmpl prompts.PromptTemplate, name string, values map[string]any) (string, error) {
	out, err := tmpl.Format(values)
	if err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return out, nil
}
