package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
)

// Print logs the exported fields of config under their env names. Zero
// values are shown as <unset>, Secret values are masked.
func Print(logger log.Logger, config interface{}) {
	v := reflect.Indirect(reflect.ValueOf(config))
	t := v.Type()

	logger.Infof("%s:", t.Name())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag, ok := field.Tag.Lookup("env"); ok {
			name, _, _ = strings.Cut(tag, ",")
		}
		logger.Printf("- %s: %s", name, valueString(v.Field(i)))
	}
}

func valueString(v reflect.Value) string {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "<unset>"
		}
		v = v.Elem()
	}
	if v.IsZero() {
		return "<unset>"
	}
	if stringer, ok := v.Interface().(fmt.Stringer); ok {
		return stringer.String()
	}
	return fmt.Sprintf("%v", v.Interface())
}
