package remediation

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

// HuhSource offers the menu as a terminal select.
type HuhSource struct {
	Accessible bool
}

func (h *HuhSource) Name() string { return "interactive" }

func (h *HuhSource) Decide(ctx context.Context, req Request) (Selection, bool, error) {
	var picked string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Remediation").
				Description(req.Context).
				Options(menuOptions()...).
				Value(&picked),
		).Title("Post-deployment remediation"),
	).WithAccessible(h.Accessible).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return Selection{}, false, nil
	}
	if err != nil {
		return Selection{}, false, err
	}

	choice := Choice(picked)
	if !choice.Valid() {
		return Selection{}, false, nil
	}
	sel := Selection{Choice: choice, Source: h.Name(), Note: req.Note}
	if choice == ChoiceCustom && sel.Note == "" {
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewText().
					Title("Note").
					Description("Recorded with the run, no action is taken").
					Value(&sel.Note),
			),
		).WithAccessible(h.Accessible).RunWithContext(ctx)
		if errors.Is(err, huh.ErrUserAborted) {
			return Selection{}, false, nil
		}
		if err != nil {
			return Selection{}, false, err
		}
	}
	return sel, true, nil
}

func menuOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(Menu)+1)
	for _, item := range Menu {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%d. %s", item.Number, item.Title), string(item.Choice)))
	}
	return append(opts, huh.NewOption("Skip", string(ChoiceNone)))
}
