package prompt

import (
	"github.com/manifoldco/promptui"
)

// Password prompts for a masked secret, e.g. the postgres password during
// interactive init.
func Password(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}
