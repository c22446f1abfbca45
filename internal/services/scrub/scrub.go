package scrub

import "github.com/antigravity-dev/ragforge/internal/interfaces"

// Scrubber implements interfaces.SecretScrubber as an explicit-stack visitor
// over a tagged union of decoded JSON value kinds (object, array, string,
// number, bool, null), avoiding unbounded recursion on adversarial input
// depth. Grounded on the teacher's internal/common/replacement.go pattern
// substitution style, adapted from a struct/reflection walk to a value-tree
// walk since scrub targets arbitrary map[string]interface{} trees rather
// than typed config structs.
type Scrubber struct {
	catalogue []pattern
}

// New builds a Scrubber with the fixed redaction catalogue: API keys by
// provider signature, bearer tokens, email addresses, and common PII.
func New() *Scrubber {
	return &Scrubber{catalogue: defaultCatalogue()}
}

// frame is one explicit-stack entry: a container (map or slice) plus the
// key/index still to visit within it, so the walk never recurses.
type frame struct {
	mapVal   map[string]interface{}
	sliceVal []interface{}
	keys     []string
	nextIdx  int
}

// Scrub returns a redacted copy of value. Maps and slices are copied;
// scalars are redacted in place on the copy. The input is never mutated.
func (s *Scrubber) Scrub(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return s.scrubMap(v)
	case []interface{}:
		return s.scrubSlice(v)
	case string:
		return s.redactString(v)
	default:
		return value
	}
}

// scrubMap and scrubSlice use an explicit worklist of frames instead of
// direct recursion: each frame owns one container, and nested containers
// push a new frame rather than calling back into scrubMap/scrubSlice.
func (s *Scrubber) scrubMap(m map[string]interface{}) map[string]interface{} {
	root := make(map[string]interface{}, len(m))
	type pending struct {
		src  map[string]interface{}
		dst  map[string]interface{}
		keys []string
		i    int
	}
	type pendingSlice struct {
		src []interface{}
		dst []interface{}
		i   int
	}

	var mapStack []*pending
	var sliceStack []*pendingSlice

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	mapStack = append(mapStack, &pending{src: m, dst: root, keys: keys})

	for len(mapStack) > 0 || len(sliceStack) > 0 {
		if len(mapStack) > 0 {
			top := mapStack[len(mapStack)-1]
			if top.i >= len(top.keys) {
				mapStack = mapStack[:len(mapStack)-1]
				continue
			}
			key := top.keys[top.i]
			top.i++
			val := top.src[key]

			switch v := val.(type) {
			case map[string]interface{}:
				child := make(map[string]interface{}, len(v))
				top.dst[key] = child
				childKeys := make([]string, 0, len(v))
				for k := range v {
					childKeys = append(childKeys, k)
				}
				mapStack = append(mapStack, &pending{src: v, dst: child, keys: childKeys})
			case []interface{}:
				child := make([]interface{}, len(v))
				top.dst[key] = child
				sliceStack = append(sliceStack, &pendingSlice{src: v, dst: child})
			case string:
				top.dst[key] = s.redactString(v)
			default:
				top.dst[key] = v
			}
			continue
		}

		top := sliceStack[len(sliceStack)-1]
		if top.i >= len(top.src) {
			sliceStack = sliceStack[:len(sliceStack)-1]
			continue
		}
		idx := top.i
		top.i++
		val := top.src[idx]

		switch v := val.(type) {
		case map[string]interface{}:
			child := make(map[string]interface{}, len(v))
			top.dst[idx] = child
			childKeys := make([]string, 0, len(v))
			for k := range v {
				childKeys = append(childKeys, k)
			}
			mapStack = append(mapStack, &pending{src: v, dst: child, keys: childKeys})
		case []interface{}:
			child := make([]interface{}, len(v))
			top.dst[idx] = child
			sliceStack = append(sliceStack, &pendingSlice{src: v, dst: child})
		case string:
			top.dst[idx] = s.redactString(v)
		default:
			top.dst[idx] = v
		}
	}

	return root
}

func (s *Scrubber) scrubSlice(sl []interface{}) []interface{} {
	wrapped := map[string]interface{}{"_": sl}
	result := s.scrubMap(wrapped)
	out, _ := result["_"].([]interface{})
	return out
}

func (s *Scrubber) redactString(value string) string {
	for _, p := range s.catalogue {
		value = p.re.ReplaceAllString(value, "[REDACTED:"+p.kind+"]")
	}
	return value
}

var _ interfaces.SecretScrubber = (*Scrubber)(nil)
