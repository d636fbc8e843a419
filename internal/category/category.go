package category

import (
	"regexp"
	"sort"
	"strings"
)

// Key identifies one map layer. Custom keys carry the "custom-" prefix.
type Key string

const (
	Vehicle    Key = "vehicle"
	Technician Key = "technician"
	Reseller   Key = "reseller"
	Repair     Key = "repair"

	customPrefix = "custom-"
)

var fixedKeys = []Key{
	Vehicle,
	Technician,
	Reseller,
	Repair,
}

// Partner categories that can occupy the left panel group.
var partnerKeys = []Key{
	Technician,
	Reseller,
	Repair,
}

var whitespace = regexp.MustCompile(`\s+`)

func FixedKeys() []Key {
	out := make([]Key, len(fixedKeys))
	copy(out, fixedKeys)
	return out
}

func PartnerKeys() []Key {
	out := make([]Key, len(partnerKeys))
	copy(out, partnerKeys)
	return out
}

// NormalizeKey lowercases, trims and replaces runs of whitespace with "_".
func NormalizeKey(raw string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "_")
}

// Custom builds the layer key for a configured custom category.
func Custom(raw string) Key {
	k := NormalizeKey(raw)
	k = strings.TrimPrefix(k, customPrefix)
	if k == "" {
		return ""
	}
	return Key(customPrefix + k)
}

func (k Key) IsCustom() bool {
	return strings.HasPrefix(string(k), customPrefix) && len(k) > len(customPrefix)
}

func (k Key) IsPartner() bool {
	if k.IsCustom() {
		return true
	}
	for _, p := range partnerKeys {
		if k == p {
			return true
		}
	}
	return false
}

func (k Key) IsFixed() bool {
	for _, f := range fixedKeys {
		if k == f {
			return true
		}
	}
	return false
}

// Parse accepts fixed keys, their common aliases and custom keys.
func Parse(raw string) (Key, bool) {
	n := NormalizeKey(raw)
	switch n {
	case "vehicle", "vehicles":
		return Vehicle, true
	case "technician", "technicians", "tech", "installer", "installers":
		return Technician, true
	case "reseller", "resellers":
		return Reseller, true
	case "repair", "repairs", "repair_shop", "repair_shops":
		return Repair, true
	}
	if Key(n).IsCustom() {
		return Key(n), true
	}
	return "", false
}

func SortKeys(keys []Key) []Key {
	out := make([]Key, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
