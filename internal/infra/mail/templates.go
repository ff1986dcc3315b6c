package mail

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template names used by the verification flows.
const (
	TemplateRegistrationCode = "registration_code"
	TemplateLoginCode        = "login_code"
	TemplateRecoveryCode     = "recovery_code"
)

// Template is a named plain-text message with ${name} placeholders.
type Template struct {
	Subject string
	Body    string
}

// TemplateSet resolves named templates and renders them with a substitution map.
type TemplateSet struct {
	templates map[string]Template
}

var builtinTemplates = map[string]Template{
	TemplateRegistrationCode: {
		Subject: "Confirm your registration",
		Body:    "Your registration confirmation code is ${code}. It expires in ${ttl}.",
	},
	TemplateLoginCode: {
		Subject: "Your sign-in code",
		Body:    "Your sign-in confirmation code is ${code}. It expires in ${ttl}.",
	},
	TemplateRecoveryCode: {
		Subject: "Password recovery",
		Body:    "Your password recovery code is ${code}. It expires in ${ttl}.",
	},
}

// NewTemplateSet returns a set seeded with the built-in templates. When dir is
// non-empty, <name>.txt files found there override the defaults: the first
// line is the subject, the rest is the body.
func NewTemplateSet(dir string) (*TemplateSet, error) {
	set := &TemplateSet{templates: make(map[string]Template, len(builtinTemplates))}
	for name, tpl := range builtinTemplates {
		set.templates[name] = tpl
	}

	if strings.TrimSpace(dir) == "" {
		return set, nil
	}

	for name := range builtinTemplates {
		path := filepath.Join(dir, name+".txt")
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}

		subject, body, found := strings.Cut(string(raw), "\n")
		if !found {
			body = subject
			subject = set.templates[name].Subject
		}
		set.templates[name] = Template{
			Subject: strings.TrimSpace(subject),
			Body:    strings.TrimRight(body, "\n"),
		}
	}

	return set, nil
}

// Render substitutes ${name} placeholders in the named template. Unknown
// placeholders render as empty strings.
func (s *TemplateSet) Render(name string, vars map[string]string) (Template, error) {
	tpl, ok := s.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown template %q", name)
	}

	expand := func(key string) string {
		return vars[key]
	}

	return Template{
		Subject: os.Expand(tpl.Subject, expand),
		Body:    os.Expand(tpl.Body, expand),
	}, nil
}
