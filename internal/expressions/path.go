package expressions

import (
	"context"
	"errors"

	"github.com/rendis/flowrun/pkg/schema"
)

// getPathQuery walks $path one segment at a time. Objects are indexed by
// key, arrays by decimal index; any other hop is an error.
const getPathQuery = `
def step($k):
  if type == "object" then
    if has($k) then .[$k] else error("missing key " + $k) end
  elif type == "array" and ($k | test("^[0-9]+$")) then
    ($k | tonumber) as $i
    | if $i < length then .[$i] else error("index out of range " + $k) end
  else error("cannot index " + type + " with " + $k) end;
reduce $path[] as $k (.; step($k))`

// setPathQuery converts $path into a jq path (numeric segments become
// indexes when the current value is an array) and writes $value there.
const setPathQuery = `
def typed($p):
  reduce $p[] as $k ({cur: ., out: []};
    if (.cur | type) == "array" and ($k | test("^[0-9]+$")) then
      ($k | tonumber) as $i | .out += [$i] | .cur = .cur[$i]
    else
      .out += [$k] | .cur = (if (.cur | type) == "object" then .cur[$k] else null end)
    end)
  | .out;
setpath(typed($path); $value)`

var pathEngine = NewGoJQEngine()

// ErrPathNotFound is returned by GetPath when a hop fails.
var ErrPathNotFound = errors.New("path not found")

// GetPath returns the value nested in root at path. An empty path returns
// root itself.
func GetPath(root any, path []string) (any, error) {
	if len(path) == 0 {
		return root, nil
	}
	results, err := pathEngine.run(context.Background(), getPathQuery,
		[]string{"$path"}, normalizeForJQ(root), []any{toAnySlice(path)})
	if err != nil {
		return nil, errors.Join(ErrPathNotFound, err)
	}
	if len(results) != 1 {
		return nil, ErrPathNotFound
	}
	return results[0], nil
}

// SetPath returns a copy of root with value written at path. Missing
// intermediate objects are created.
func SetPath(root any, path []string, value any) (any, error) {
	if len(path) == 0 {
		return value, nil
	}
	results, err := pathEngine.run(context.Background(), setPathQuery,
		[]string{"$path", "$value"}, normalizeForJQ(root), []any{toAnySlice(path), normalizeForJQ(value)})
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, schema.NewError(schema.ErrCodeExecution, "set path produced no result")
	}
	return results[0], nil
}

func toAnySlice(path []string) []any {
	out := make([]any, len(path))
	for i, p := range path {
		out[i] = p
	}
	return out
}
