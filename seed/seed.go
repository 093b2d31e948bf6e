// Package seed bootstraps an empty store from a YAML file: resources,
// checks, alert rules, and notification channels for a fresh install.
package seed

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"watchpost/model"
	"watchpost/store"
)

type File struct {
	Resources []model.Resource            `yaml:"resources"`
	Checks    []model.CheckDefinition     `yaml:"checks"`
	Rules     []model.AlertRule           `yaml:"rules"`
	Channels  []model.NotificationChannel `yaml:"channels"`
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// Apply loads the file into the store, but only when no checks exist
// yet: seeding is a first-boot convenience, never an overwrite.
func Apply(ctx context.Context, st store.Store, path string) error {
	n, err := st.CountChecks(ctx)
	if err != nil {
		return fmt.Errorf("count checks: %w", err)
	}
	if n > 0 {
		log.Printf("seed: store already has %d checks, skipping %s", n, path)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return err
	}

	for i := range f.Resources {
		r := &f.Resources[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if err := st.InsertResource(ctx, r); err != nil {
			return fmt.Errorf("seed resource %s: %w", r.Name, err)
		}
	}
	for i := range f.Checks {
		c := &f.Checks[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if err := st.InsertCheck(ctx, c); err != nil {
			return fmt.Errorf("seed check %s: %w", c.Name, err)
		}
	}
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if err := st.InsertRule(ctx, r); err != nil {
			return fmt.Errorf("seed rule %s: %w", r.Name, err)
		}
	}
	for i := range f.Channels {
		c := &f.Channels[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if err := st.InsertChannel(ctx, c); err != nil {
			return fmt.Errorf("seed channel %s: %w", c.Name, err)
		}
	}

	log.Printf("seed: loaded %d resources, %d checks, %d rules, %d channels from %s",
		len(f.Resources), len(f.Checks), len(f.Rules), len(f.Channels), path)
	return nil
}
