package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BitPonyLLC/hp-manager/pkg/ipc"
	"github.com/BitPonyLLC/hp-manager/pkg/service"
	"github.com/BitPonyLLC/hp-manager/pkg/termwrap"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// callDaemon invokes method on the running daemon. A FAIL or error result is
// returned as an error so the process exits non-zero.
func callDaemon(cmd *cobra.Command, method string, args ...any) (string, error) {
	client, err := ipc.Dial(viper.GetString("bus"))
	if err != nil {
		return "", fail(20, "unable to reach the daemon: %w", err)
	}
	defer client.Close()

	log.Debug().Str("method", method).Interface("args", args).Msg("calling")

	result, err := client.Call(cmd.Context(), method, args...)
	if err != nil {
		return "", fail(21, err)
	}

	if service.Failed(result) {
		return result, fail(22, "%s refused: %s", method, result)
	}

	return result, nil
}

// runCall is the RunE body for commands that only report the status.
func runCall(cmd *cobra.Command, method string, args ...any) error {
	result, err := callDaemon(cmd, method, args...)
	if err != nil {
		return err
	}

	cmd.Println(result)
	return nil
}

// currentState fetches the lighting state so partial updates can carry the
// unchanged fields.
func currentState(cmd *cobra.Command) (map[string]any, error) {
	result, err := callDaemon(cmd, "GetState")
	if err != nil {
		return nil, err
	}

	var st map[string]any
	err = json.Unmarshal([]byte(result), &st)
	if err != nil {
		return nil, fail(23, "unable to decode state: %w", err)
	}

	return st, nil
}

// describe flattens a JSON document into labeled rows.
func describe(content string) ([]termwrap.KeyValue, error) {
	var doc any
	err := json.Unmarshal([]byte(content), &doc)
	if err != nil {
		return nil, err
	}

	rows := []termwrap.KeyValue{}
	flatten(&rows, "", doc)
	return rows, nil
}

var titler = cases.Title(language.English)

func flatten(rows *[]termwrap.KeyValue, key string, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(rows, join(key, k), val[k])
		}
	case []any:
		if scalars(val) {
			parts := make([]string, len(val))
			for i, item := range val {
				parts[i] = scalar(item)
			}
			*rows = append(*rows, termwrap.KeyValue{Key: label(key), Value: strings.Join(parts, ", ")})
			return
		}
		for i, item := range val {
			flatten(rows, join(key, strconv.Itoa(i+1)), item)
		}
	default:
		*rows = append(*rows, termwrap.KeyValue{Key: label(key), Value: scalar(val)})
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + " " + key
}

func label(key string) string {
	return titler.String(strings.ReplaceAll(key, "_", " "))
}

func scalars(list []any) bool {
	for _, item := range list {
		switch item.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}

func scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
