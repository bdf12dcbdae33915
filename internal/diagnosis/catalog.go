/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package diagnosis holds the versioned cause/impact/action templates that
// checks render into their results. Improving the wording of a diagnosis
// means registering a new version, not editing the check.
package diagnosis

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/raphaelisaac/hulken/internal/checker"
)

// ErrUnknownTemplate is returned when a key or version has not been registered.
var ErrUnknownTemplate = errors.New("unknown diagnosis template")

// Template is one registered version of a diagnosis.
type Template struct {
	Key     string
	Version string

	cause  *template.Template
	impact *template.Template
	action *template.Template
}

// Catalog maps template keys to their registered versions. The version a
// key renders with is the pinned one, or the most recently registered.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]map[string]*Template
	latest    map[string]string
	pinned    map[string]string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		templates: make(map[string]map[string]*Template),
		latest:    make(map[string]string),
		pinned:    make(map[string]string),
	}
}

// Register parses and adds a template version. An empty part renders as
// an empty string.
func (c *Catalog) Register(key, version, cause, impact, action string) error {
	if key == "" || version == "" {
		return fmt.Errorf("diagnosis template needs a key and a version")
	}
	t := &Template{Key: key, Version: version}
	var err error
	name := key + "@" + version
	if t.cause, err = parse(name+"/cause", cause); err != nil {
		return err
	}
	if t.impact, err = parse(name+"/impact", impact); err != nil {
		return err
	}
	if t.action, err = parse(name+"/action", action); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.templates[key]; !ok {
		c.templates[key] = make(map[string]*Template)
	}
	if _, exists := c.templates[key][version]; exists {
		return fmt.Errorf("diagnosis template %s already registered", name)
	}
	c.templates[key][version] = t
	c.latest[key] = version
	return nil
}

// MustRegister is Register that panics; used for the built-in set.
func (c *Catalog) MustRegister(key, version, cause, impact, action string) {
	if err := c.Register(key, version, cause, impact, action); err != nil {
		panic(err)
	}
}

// Pin selects the version a key renders with.
func (c *Catalog) Pin(key, version string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.templates[key][version]; !ok {
		return fmt.Errorf("%w: %s@%s", ErrUnknownTemplate, key, version)
	}
	c.pinned[key] = version
	return nil
}

// Version returns the version key currently renders with.
func (c *Catalog) Version(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.pinned[key]; ok {
		return v, true
	}
	v, ok := c.latest[key]
	return v, ok
}

// Keys returns every registered key, sorted.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.templates))
	for k := range c.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Render fills the active version of key with data.
func (c *Catalog) Render(key string, data map[string]any) (*checker.Diagnosis, error) {
	version, ok := c.Version(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, key)
	}
	return c.RenderVersion(key, version, data)
}

// RenderVersion fills a specific version of key with data.
func (c *Catalog) RenderVersion(key, version string, data map[string]any) (*checker.Diagnosis, error) {
	c.mu.RLock()
	t, ok := c.templates[key][version]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrUnknownTemplate, key, version)
	}

	cause, err := execute(t.cause, data)
	if err != nil {
		return nil, err
	}
	impact, err := execute(t.impact, data)
	if err != nil {
		return nil, err
	}
	action, err := execute(t.action, data)
	if err != nil {
		return nil, err
	}
	return &checker.Diagnosis{Cause: cause, Impact: impact, Action: action}, nil
}

func parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Funcs(funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse diagnosis template %s: %w", name, err)
	}
	return t, nil
}

func execute(t *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render diagnosis template %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
