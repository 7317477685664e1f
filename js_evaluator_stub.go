//go:build !js_eval

package chainmap

// NewJSEvaluator returns nil unless the module is built with the js_eval tag.
// Options are still validated so call sites behave the same in both builds.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	newJSSettings(opts)
	return nil
}

func jsEvaluatorAvailable() bool { return false }
