package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// Interactive prompts per module and applies the confirmed selection.
// Defaults come from the last run record: modules that already succeeded
// default to skip, everything else defaults to run.
func (c command) Interactive(ctx context.Context) error {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return errors.New("no module/operation given and stdin is not a terminal; try 'hosttune all apply'")
	}
	if err := requireRoot(); err != nil {
		return err
	}

	eng, err := c.engine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	last, err := eng.LastRecord()
	if err != nil {
		return err
	}
	alreadyOK := map[string]bool{}
	if last != nil {
		alreadyOK = last.SucceededSet()
	}

	mods := eng.Modules()
	choices := make([]bool, len(mods))
	var fields []huh.Field
	for i, m := range mods {
		choices[i] = !alreadyOK[m.Name]
		note := ""
		if alreadyOK[m.Name] {
			note = " (applied in last run)"
		}
		fields = append(fields, huh.NewConfirm().
			Title(fmt.Sprintf("Apply %s?%s", m.Name, note)).
			Description(m.Description).
			Affirmative("Run").
			Negative("Skip").
			Value(&choices[i]))
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}

	var selected []string
	for i, m := range mods {
		if choices[i] {
			selected = append(selected, m.Name)
		}
	}
	if len(selected) == 0 {
		fmt.Println("nothing selected")
		return nil
	}

	rec, outcomes, err := eng.Apply(ctx, selected)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, "apply", outcomes, rec)
	if len(rec.Failed) > 0 {
		return fmt.Errorf("%d module(s) failed", len(rec.Failed))
	}
	return nil
}
