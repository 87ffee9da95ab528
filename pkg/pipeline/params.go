package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mgutz/str"

	"github.com/patchbay-dev/patchbay/pkg/models"
)

// Parameters is the assembled argv contribution of a block's settings:
// positional values emitted as bare tokens, followed by the tokens produced
// by formatting the remaining values into the block's parameter template.
type Parameters struct {
	Positional []string
	Templated  []string
}

// placeholderVerbs returns the printf verbs ('s' or 'd') of a parameter
// template, in order. "%%" is a literal percent and counts for nothing.
func placeholderVerbs(template string) []byte {
	var verbs []byte
	for i := 0; i < len(template)-1; i++ {
		if template[i] != '%' {
			continue
		}
		switch template[i+1] {
		case 's', 'd':
			verbs = append(verbs, template[i+1])
		}
		i++ // skip the verb (or the second '%' of an escape)
	}
	return verbs
}

// settingString renders a decoded settings value as the text the external
// command receives. JSON numbers arrive as float64; integral values must
// not grow a trailing ".0".
func settingString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// AssembleParameters turns a block's settings into argv material.
//
// Each gui field's value is first passed through the type's parameter
// mappings (raw value → substituted value; unmapped values pass through).
// With P placeholders in the template and G gui fields, the first G−P
// mapped values become positional tokens and the last P are formatted into
// the template, which is then word-split with quote awareness.
func AssembleParameters(blockType *models.BlockType, instance *models.BlockInstance) (*Parameters, error) {
	guiFields, err := blockType.ParsedGUIFields()
	if err != nil {
		return nil, err
	}
	mappings, err := blockType.ParsedMappings()
	if err != nil {
		return nil, err
	}
	settings, err := instance.Settings()
	if err != nil {
		return nil, err
	}

	verbs := placeholderVerbs(blockType.ParameterTemplate)
	p := len(verbs)
	g := len(guiFields)
	if g < p {
		return nil, fmt.Errorf("block type %q: template wants %d values but gui_fields has %d: %w",
			blockType.Name, p, g, models.ErrBadTemplate)
	}

	values := make([]string, g)
	for i, field := range guiFields {
		raw := settingString(settings[field])
		if mapped, ok := mappings[field][raw]; ok {
			raw = mapped
		}
		values[i] = raw
	}

	params := &Parameters{
		Positional: values[:g-p],
	}

	if p > 0 {
		args := make([]any, p)
		for i, v := range values[g-p:] {
			if verbs[i] == 'd' {
				n, err := strconv.Atoi(strings.TrimSpace(v))
				if err != nil {
					return nil, fmt.Errorf("block type %q: %%d placeholder got %q: %w",
						blockType.Name, v, models.ErrBadTemplate)
				}
				args[i] = n
			} else {
				args[i] = v
			}
		}
		formatted := fmt.Sprintf(blockType.ParameterTemplate, args...)
		params.Templated = str.ToArgv(formatted)
	}

	return params, nil
}
