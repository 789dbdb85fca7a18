package notify

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Message is a rendered template.
type Message struct {
	Subject string
	Notice  string // short text for in-app notifications
	Body    string
}

type rawTemplate struct {
	Subject string `yaml:"subject"`
	Notice  string `yaml:"notice"`
	Body    string `yaml:"body"`
}

type compiled struct {
	subject *template.Template
	notice  *template.Template
	body    *template.Template
}

// Catalog holds the compiled message templates.
type Catalog struct {
	templates map[string]compiled
}

// DefaultCatalog parses the embedded template file.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultTemplates)
}

// ParseCatalog parses a YAML template file.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw map[string]rawTemplate
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	c := &Catalog{templates: make(map[string]compiled, len(raw))}
	for name, t := range raw {
		var ct compiled
		var err error
		if ct.subject, err = parse(name+".subject", t.Subject); err != nil {
			return nil, err
		}
		if ct.notice, err = parse(name+".notice", t.Notice); err != nil {
			return nil, err
		}
		if ct.body, err = parse(name+".body", t.Body); err != nil {
			return nil, err
		}
		c.templates[name] = ct
	}
	return c, nil
}

func parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return t, nil
}

// Types returns the known template types in sorted order.
func (c *Catalog) Types() []string {
	out := make([]string, 0, len(c.templates))
	for name := range c.templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Render renders the template type with vars.
func (c *Catalog) Render(templateType string, vars map[string]string) (Message, error) {
	t, ok := c.templates[templateType]
	if !ok {
		return Message{}, fmt.Errorf("unknown template %q", templateType)
	}
	if vars == nil {
		vars = map[string]string{}
	}

	var msg Message
	var err error
	if msg.Subject, err = execute(t.subject, vars); err != nil {
		return Message{}, err
	}
	if msg.Notice, err = execute(t.notice, vars); err != nil {
		return Message{}, err
	}
	if msg.Body, err = execute(t.body, vars); err != nil {
		return Message{}, err
	}
	msg.Subject = strings.TrimSpace(msg.Subject)
	msg.Notice = strings.TrimSpace(msg.Notice)
	return msg, nil
}

func execute(t *template.Template, vars map[string]string) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", t.Name(), err)
	}
	return b.String(), nil
}
