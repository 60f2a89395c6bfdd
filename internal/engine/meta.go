package engine

import (
	"encoding/json"
	"fmt"
)

// Meta is the in-memory schema of a mod: options, presets, file mappings,
// manipulations, and UI-color bindings. It is pure data with stable JSON
// serialization — snake_case field names, enum variants tagged as
// {"VariantName": payload}.
type Meta struct {
	Name          string                     `json:"name"`
	Description   string                     `json:"description"`
	Version       string                     `json:"version"`
	Author        string                     `json:"author"`
	Website        string                     `json:"website"`
	Tags          []string                   `json:"tags"`
	Files         map[string]string          `json:"files"`
	FileSwaps     map[string]string          `json:"file_swaps"`
	Manipulations []json.RawMessage          `json:"manipulations"`
	UIColors      []UIColorBinding           `json:"ui_colors"`
	Options       []OptionEntry              `json:"options"`
	Presets       map[string]CollectionSettings `json:"presets"`
}

// OptionEntry is either a bare Category label or a full Option. The JSON
// shape is structural, not tagged: a string decodes to Category, an object
// with name/description/settings decodes to Option.
type OptionEntry struct {
	Category string
	Option   *Option
}

func (e OptionEntry) MarshalJSON() ([]byte, error) {
	if e.Option != nil {
		return json.Marshal(e.Option)
	}
	return json.Marshal(e.Category)
}

func (e *OptionEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Category = s
		e.Option = nil
		return nil
	}
	var o Option
	if err := json.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("decoding option entry: %w", err)
	}
	e.Option = &o
	return nil
}

// Option is a named knob with a settings variant that determines both the
// stored user-value shape and how contributions are accumulated.
type Option struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Settings    OptionSettings `json:"settings"`
}

// OptionSettings is tagged as {"VariantName": payload} in JSON.
type OptionSettings struct {
	Kind        OptionSettingsKind
	SingleFiles *FileOptionSettings
	MultiFiles  *FileOptionSettings
	Rgb         *NumericOptionSettings
	Rgba        *NumericOptionSettings
	Grayscale   *NumericOptionSettings
	Opacity     *NumericOptionSettings
	Mask        *NumericOptionSettings
	Path        *PathOptionSettings
}

type OptionSettingsKind string

const (
	SettingsSingleFiles OptionSettingsKind = "SingleFiles"
	SettingsMultiFiles  OptionSettingsKind = "MultiFiles"
	SettingsRgb         OptionSettingsKind = "Rgb"
	SettingsRgba        OptionSettingsKind = "Rgba"
	SettingsGrayscale   OptionSettingsKind = "Grayscale"
	SettingsOpacity     OptionSettingsKind = "Opacity"
	SettingsMask        OptionSettingsKind = "Mask"
	SettingsPath        OptionSettingsKind = "Path"
)

// FileOptionSettings backs SingleFiles (choose at most one sub-option,
// user value is a u32 index) and MultiFiles (choose any subset, user value
// is a u32 bitmask — preserved as a mask per the source's ambiguous but
// fixed representation).
type FileOptionSettings struct {
	Default uint32      `json:"default"`
	Options []SubOption `json:"options"`
}

// SubOption contributes its own files/swaps/manipulations/ui_colors, and
// may inherit missing entries from another sub-option by name.
type SubOption struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Files         map[string]string `json:"files"`
	FileSwaps     map[string]string `json:"file_swaps"`
	Manipulations []json.RawMessage `json:"manipulations"`
	UIColors      []UIColorBinding  `json:"ui_colors"`
	Inherit       *string           `json:"inherit,omitempty"`
}

// NumericOptionSettings backs the numeric knob variants (Rgb/Rgba/
// Grayscale/Opacity/Mask). The source distinguishes Grayscale/Opacity/Mask
// purely by the settings tag, not by shape — all three carry a single f32
// under the hood. Preserve the tag as the source of truth.
type NumericOptionSettings struct {
	Default []float32 `json:"default"`
	Min     []float32 `json:"min"`
	Max     []float32 `json:"max"`
}

// PathOptionSettings: each sub-option is a named set of (path_id -> mod
// local filename) pairs, referenced from a composite by (option_name, path_id).
type PathOptionSettings struct {
	Default uint32           `json:"default"`
	Options []PathSubOption `json:"options"`
}

type PathSubOption struct {
	Name  string            `json:"name"`
	Paths map[string]string `json:"paths"`
}

func (s OptionSettings) MarshalJSON() ([]byte, error) {
	var payload interface{}
	switch s.Kind {
	case SettingsSingleFiles:
		payload = s.SingleFiles
	case SettingsMultiFiles:
		payload = s.MultiFiles
	case SettingsRgb:
		payload = s.Rgb
	case SettingsRgba:
		payload = s.Rgba
	case SettingsGrayscale:
		payload = s.Grayscale
	case SettingsOpacity:
		payload = s.Opacity
	case SettingsMask:
		payload = s.Mask
	case SettingsPath:
		payload = s.Path
	default:
		return nil, fmt.Errorf("marshaling option settings: unknown kind %q", s.Kind)
	}
	return json.Marshal(map[string]interface{}{string(s.Kind): payload})
}

func (s *OptionSettings) UnmarshalJSON(data []byte) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return fmt.Errorf("decoding option settings: %w", err)
	}
	for k, raw := range wrapper {
		s.Kind = OptionSettingsKind(k)
		switch s.Kind {
		case SettingsSingleFiles:
			s.SingleFiles = &FileOptionSettings{}
			return json.Unmarshal(raw, s.SingleFiles)
		case SettingsMultiFiles:
			s.MultiFiles = &FileOptionSettings{}
			return json.Unmarshal(raw, s.MultiFiles)
		case SettingsRgb:
			s.Rgb = &NumericOptionSettings{}
			return json.Unmarshal(raw, s.Rgb)
		case SettingsRgba:
			s.Rgba = &NumericOptionSettings{}
			return json.Unmarshal(raw, s.Rgba)
		case SettingsGrayscale:
			s.Grayscale = &NumericOptionSettings{}
			return json.Unmarshal(raw, s.Grayscale)
		case SettingsOpacity:
			s.Opacity = &NumericOptionSettings{}
			return json.Unmarshal(raw, s.Opacity)
		case SettingsMask:
			s.Mask = &NumericOptionSettings{}
			return json.Unmarshal(raw, s.Mask)
		case SettingsPath:
			s.Path = &PathOptionSettings{}
			return json.Unmarshal(raw, s.Path)
		default:
			return fmt.Errorf("decoding option settings: unknown variant %q", k)
		}
	}
	return fmt.Errorf("decoding option settings: empty object")
}

// UIColorBinding maps a theme slot to a resolvable color.
type UIColorBinding struct {
	UseTheme bool          `json:"use_theme"`
	Index    uint32        `json:"index"`
	Color    OptionOrStatic `json:"color"`
}

// OptionOrStaticKind enumerates the value-composition variants salvaged
// from the legacy per-mod settings model: a value is either a fixed
// constant or derived from an option's current setting, optionally
// combined via subtraction, multiplication, or a two-stop gradient.
type OptionOrStaticKind string

const (
	ValueStatic        OptionOrStaticKind = "Static"
	ValueOption        OptionOrStaticKind = "Option"
	ValueOptionSub     OptionOrStaticKind = "OptionSub"
	ValueOptionMul     OptionOrStaticKind = "OptionMul"
	ValueOptionGradiant OptionOrStaticKind = "OptionGradiant"
)

// OptionOrStatic is a [f32;3] or [f32;4] value that is either a literal or
// derived from an option reference, per §3.2's ui_colors shape.
type OptionOrStatic struct {
	Kind     OptionOrStaticKind
	Static   []float32
	Option   string // option name
	Sub      []float32
	Mul      float32
	GradLow  []float32
	GradHigh []float32
}

func (v OptionOrStatic) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueStatic:
		return json.Marshal(map[string]interface{}{string(ValueStatic): v.Static})
	case ValueOption:
		return json.Marshal(map[string]interface{}{string(ValueOption): v.Option})
	case ValueOptionSub:
		return json.Marshal(map[string]interface{}{string(ValueOptionSub): map[string]interface{}{
			"option": v.Option, "sub": v.Sub,
		}})
	case ValueOptionMul:
		return json.Marshal(map[string]interface{}{string(ValueOptionMul): map[string]interface{}{
			"option": v.Option, "mul": v.Mul,
		}})
	case ValueOptionGradiant:
		return json.Marshal(map[string]interface{}{string(ValueOptionGradiant): map[string]interface{}{
			"option": v.Option, "low": v.GradLow, "high": v.GradHigh,
		}})
	default:
		return nil, fmt.Errorf("marshaling option-or-static: unknown kind %q", v.Kind)
	}
}

func (v *OptionOrStatic) UnmarshalJSON(data []byte) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return fmt.Errorf("decoding option-or-static: %w", err)
	}
	for k, raw := range wrapper {
		v.Kind = OptionOrStaticKind(k)
		switch v.Kind {
		case ValueStatic:
			return json.Unmarshal(raw, &v.Static)
		case ValueOption:
			return json.Unmarshal(raw, &v.Option)
		case ValueOptionSub:
			var body struct {
				Option string    `json:"option"`
				Sub    []float32 `json:"sub"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			v.Option, v.Sub = body.Option, body.Sub
			return nil
		case ValueOptionMul:
			var body struct {
				Option string  `json:"option"`
				Mul    float32 `json:"mul"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			v.Option, v.Mul = body.Option, body.Mul
			return nil
		case ValueOptionGradiant:
			var body struct {
				Option string    `json:"option"`
				Low    []float32 `json:"low"`
				High   []float32 `json:"high"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			v.Option, v.GradLow, v.GradHigh = body.Option, body.Low, body.High
			return nil
		default:
			return fmt.Errorf("decoding option-or-static: unknown variant %q", k)
		}
	}
	return fmt.Errorf("decoding option-or-static: empty object")
}

// Resolve walks the option-or-static chain against a collection's current
// settings, yielding a 4-channel color. Static values pass through; option
// references pull the numeric option's current value (falling back to its
// declared default when the collection hasn't set it).
func (v OptionOrStatic) Resolve(meta *Meta, settings CollectionSettings) ([]float32, error) {
	switch v.Kind {
	case ValueStatic:
		return v.Static, nil
	case ValueOption:
		return resolveNumericOption(meta, settings, v.Option)
	case ValueOptionSub:
		base, err := resolveNumericOption(meta, settings, v.Option)
		if err != nil {
			return nil, err
		}
		return subtractChannels(base, v.Sub), nil
	case ValueOptionMul:
		base, err := resolveNumericOption(meta, settings, v.Option)
		if err != nil {
			return nil, err
		}
		return mulChannels(base, v.Mul), nil
	case ValueOptionGradiant:
		base, err := resolveNumericOption(meta, settings, v.Option)
		if err != nil {
			return nil, err
		}
		return gradientChannels(v.GradLow, v.GradHigh, base), nil
	default:
		return nil, fmt.Errorf("resolving option-or-static: unknown kind %q", v.Kind)
	}
}

func subtractChannels(base, sub []float32) []float32 {
	out := make([]float32, len(base))
	for i := range base {
		v := base[i]
		if i < len(sub) {
			v -= sub[i]
		}
		out[i] = v
	}
	return out
}

func mulChannels(base []float32, m float32) []float32 {
	out := make([]float32, len(base))
	for i := range base {
		out[i] = base[i] * m
	}
	return out
}

func gradientChannels(low, high, t []float32) []float32 {
	n := len(low)
	if len(high) > n {
		n = len(high)
	}
	out := make([]float32, n)
	var tv float32
	if len(t) > 0 {
		tv = t[0]
	}
	for i := 0; i < n; i++ {
		var lo, hi float32
		if i < len(low) {
			lo = low[i]
		}
		if i < len(high) {
			hi = high[i]
		}
		out[i] = lo + (hi-lo)*tv
	}
	return out
}

// resolveNumericOption finds option by name in meta.Options, and reads its
// current collection value, falling back to the declared default with the
// shape rule from §4.2: Mask yields an f32; Rgba/Rgb/Grayscale/Opacity
// yield a 4-channel color with defaults (v,v,v,1) or (1,1,1,v) as
// appropriate.
func resolveNumericOption(meta *Meta, settings CollectionSettings, name string) ([]float32, error) {
	for _, entry := range meta.Options {
		if entry.Option == nil || entry.Option.Name != name {
			continue
		}
		opt := entry.Option
		raw, ok := settings[name]
		var vals []float32
		switch opt.Settings.Kind {
		case SettingsMask:
			vals = opt.Settings.Mask.Default
			if ok {
				if f, err := settingAsFloats(raw); err == nil {
					vals = f
				}
			}
			if len(vals) == 0 {
				vals = []float32{0}
			}
			return []float32{vals[0]}, nil
		case SettingsRgba, SettingsRgb, SettingsGrayscale, SettingsOpacity:
			ns := numericSettingsFor(opt.Settings)
			vals = ns.Default
			if ok {
				if f, err := settingAsFloats(raw); err == nil {
					vals = f
				}
			}
			return expandToRGBA(opt.Settings.Kind, vals), nil
		default:
			return nil, fmt.Errorf("option %q is not numeric", name)
		}
	}
	return nil, fmt.Errorf("option %q not found in meta", name)
}

func numericSettingsFor(s OptionSettings) *NumericOptionSettings {
	switch s.Kind {
	case SettingsRgb:
		return s.Rgb
	case SettingsRgba:
		return s.Rgba
	case SettingsGrayscale:
		return s.Grayscale
	case SettingsOpacity:
		return s.Opacity
	case SettingsMask:
		return s.Mask
	default:
		return &NumericOptionSettings{}
	}
}

func settingAsFloats(raw json.RawMessage) ([]float32, error) {
	var arr []float32
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}
	var single float32
	if err := json.Unmarshal(raw, &single); err == nil {
		return []float32{single}, nil
	}
	return nil, fmt.Errorf("setting value is neither an array nor a scalar")
}

// expandToRGBA applies the shape rule: Grayscale/Opacity/Mask carry one
// scalar `v`; Grayscale expands to (v,v,v,1), Opacity to (1,1,1,v). Rgb
// expands (r,g,b) to (r,g,b,1); Rgba passes through.
func expandToRGBA(kind OptionSettingsKind, vals []float32) []float32 {
	switch kind {
	case SettingsGrayscale:
		v := firstOr(vals, 0)
		return []float32{v, v, v, 1}
	case SettingsOpacity:
		v := firstOr(vals, 1)
		return []float32{1, 1, 1, v}
	case SettingsRgb:
		if len(vals) >= 3 {
			return []float32{vals[0], vals[1], vals[2], 1}
		}
		return []float32{1, 1, 1, 1}
	case SettingsRgba:
		if len(vals) >= 4 {
			return vals
		}
		return []float32{1, 1, 1, 1}
	default:
		return vals
	}
}

func firstOr(vals []float32, def float32) float32 {
	if len(vals) > 0 {
		return vals[0]
	}
	return def
}

// CollectionSettings maps option name to a JSON-encoded user value whose
// shape matches the option's declared variant. Missing entries mean "use
// default".
type CollectionSettings map[string]json.RawMessage

// Equal reports whether both maps hold the same set of keys with identical
// raw JSON values. Option defaults are not consulted: a key present on one
// side and missing on the other never matches, even when its value equals
// the option's default.
func (a CollectionSettings) Equal(b CollectionSettings) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || string(v) != string(ov) {
			return false
		}
	}
	return true
}
