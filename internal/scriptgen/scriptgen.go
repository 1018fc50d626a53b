// Package scriptgen produces training entry-point scripts from embedded
// templates. Model training itself runs outside this tool; the generated
// script is what the training job executes.
package scriptgen

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed templates/*.template
var templates embed.FS

// Params holds the substitution values for a training script template.
type Params struct {
	// ModelType selects the template when no explicit class is given.
	ModelType string

	// ModelClass and ModelImports override the default estimator.
	// Both are inserted verbatim, not quoted.
	ModelClass   string
	ModelImports string

	TargetColumn       string
	FeatureList        []string
	ModelMetricsS3Path string
	TrainAllData       bool
}

// TemplateFor returns the template file name for the given parameters.
func TemplateFor(p Params) (string, error) {
	switch {
	case p.ModelClass != "":
		return "scikit_learn.template", nil
	case p.ModelType == "regressor" || p.ModelType == "classifier":
		return "xgb_model.template", nil
	case p.ModelType == "quantile_regressor":
		return "quant_regression.template", nil
	default:
		return "", fmt.Errorf("no training template for model type %q", p.ModelType)
	}
}

// Generate fills the matching template and returns the script contents.
func Generate(p Params) (string, error) {
	name, err := TemplateFor(p)
	if err != nil {
		return "", err
	}

	raw, err := templates.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}

	features, err := json.Marshal(p.FeatureList)
	if err != nil {
		return "", fmt.Errorf("failed to encode feature list: %w", err)
	}

	script := string(raw)
	script = fillQuoted(script, "model_type", p.ModelType)
	script = fillQuoted(script, "target_column", p.TargetColumn)
	script = fillQuoted(script, "model_metrics_s3_path", p.ModelMetricsS3Path)
	script = fillRaw(script, "feature_list", string(features))
	script = fillRaw(script, "train_all_data", pythonBool(p.TrainAllData))
	script = fillRaw(script, "model_class", p.ModelClass)
	script = fillRaw(script, "model_imports", p.ModelImports)

	// Every placeholder must be consumed or the script will not run.
	if strings.Contains(script, "{{") || strings.Contains(script, "}}") {
		return "", fmt.Errorf("unfilled placeholders remain in template %s", name)
	}
	return script, nil
}

// fillQuoted replaces a placeholder with a quoted string value.
// Placeholders appear quoted in the templates, so the replacement
// keeps the surrounding quotes.
func fillQuoted(template, key, value string) string {
	return strings.ReplaceAll(template, `"{{`+key+`}}"`, fmt.Sprintf("%q", value))
}

// fillRaw replaces a placeholder with an unquoted value.
func fillRaw(template, key, value string) string {
	return strings.ReplaceAll(template, `"{{`+key+`}}"`, value)
}

func pythonBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
