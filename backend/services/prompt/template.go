package prompt

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDomain is the subject the assistant is restricted to
const DefaultDomain = "蝴蝶"

// defaultBody is the built-in system prompt. It is rendered with .Domain,
// .Context and .Question.
const defaultBody = `你是一个专门提供{{.Domain}}相关信息的智能助手。
请使用以下上下文信息来回答问题：
----------------
开始上下文
{{.Context}}
结束上下文
----------------

请用markdown格式返回答案，包含相关链接和信息最后更新的日期。
如果上述上下文信息不足以回答问题，请基于你的知识提供答案，但要提醒用户这些信息可能不是最新的。
如果用户问的问题与{{.Domain}}无关，请礼貌地告知你只能回答{{.Domain}}相关的问题。

----------------
问题: {{.Question}}
----------------`

// Template is the configurable system prompt
type Template struct {
	Name     string `yaml:"name" json:"name"`
	Domain   string `yaml:"domain" json:"domain"`
	Language string `yaml:"language" json:"language"`
	Body     string `yaml:"body" json:"body"`
}

// DefaultTemplate returns the built-in Chinese butterfly assistant prompt
func DefaultTemplate() Template {
	return Template{
		Name:     "butterfly-assistant",
		Domain:   DefaultDomain,
		Language: "zh",
		Body:     defaultBody,
	}
}

// LoadTemplate reads a YAML template file. Fields left empty in the file keep
// their built-in values.
func LoadTemplate(path string) (Template, error) {
	tmpl := DefaultTemplate()

	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("failed to read prompt template: %w", err)
	}

	return ParseTemplate(data, tmpl)
}

// ParseTemplate overlays YAML data on base
func ParseTemplate(data []byte, base Template) (Template, error) {
	var file Template
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return Template{}, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	if file.Name != "" {
		base.Name = file.Name
	}
	if file.Domain != "" {
		base.Domain = file.Domain
	}
	if file.Language != "" {
		base.Language = file.Language
	}
	if strings.TrimSpace(file.Body) != "" {
		base.Body = file.Body
	}
	return base, nil
}

// WithDomain returns a copy of t restricted to domain. An empty domain keeps t unchanged.
func (t Template) WithDomain(domain string) Template {
	if domain = strings.TrimSpace(domain); domain != "" {
		t.Domain = domain
	}
	return t
}
