package storage

import "path"

// Bucket prefixes for each artifact family.
const (
	PrefixDataSources = "data-sources"
	PrefixFeatureSets = "feature-sets"
	PrefixModels      = "models"
	PrefixEndpoints   = "endpoints"
	PrefixDataFrames  = "dataframes"
	PrefixPipelines   = "pipelines"
	PrefixLogs        = "logs"
)

// Layout computes object keys inside the SageWorks bucket.
type Layout struct {
	Bucket string
}

// DataSourceKey is the raw data object for a data source.
func (l Layout) DataSourceKey(name, file string) string {
	return path.Join(PrefixDataSources, name, file)
}

// DataSourcePrefix is every object belonging to a data source.
func (l Layout) DataSourcePrefix(name string) string {
	return path.Join(PrefixDataSources, name) + "/"
}

// FeatureSetKey is an object in a feature set's offline store.
func (l Layout) FeatureSetKey(name, file string) string {
	return path.Join(PrefixFeatureSets, name, file)
}

// FeatureSetPrefix is every object belonging to a feature set.
func (l Layout) FeatureSetPrefix(name string) string {
	return path.Join(PrefixFeatureSets, name) + "/"
}

// ModelKey is an object in a model's bundle (script, params, metrics).
func (l Layout) ModelKey(name, file string) string {
	return path.Join(PrefixModels, name, file)
}

// ModelPrefix is every object belonging to a model.
func (l Layout) ModelPrefix(name string) string {
	return path.Join(PrefixModels, name) + "/"
}

// EndpointKey is an object under an endpoint (inference captures, metrics).
func (l Layout) EndpointKey(name, file string) string {
	return path.Join(PrefixEndpoints, name, file)
}

// EndpointInferenceKey is a capture object for one inference run.
func (l Layout) EndpointInferenceKey(name, runID, file string) string {
	return path.Join(PrefixEndpoints, name, "inference", runID, file)
}

// EndpointPrefix is every object belonging to an endpoint.
func (l Layout) EndpointPrefix(name string) string {
	return path.Join(PrefixEndpoints, name) + "/"
}

// DataFrameKey is a stored dataframe location.
func (l Layout) DataFrameKey(location string) string {
	return path.Join(PrefixDataFrames, location) + ".parquet"
}

// PipelineKey is a pipeline definition object.
func (l Layout) PipelineKey(name string) string {
	return path.Join(PrefixPipelines, name) + ".json"
}

// LogKey is a log stream object within a log group.
func (l Layout) LogKey(group, stream string) string {
	return path.Join(PrefixLogs, group, stream) + ".jsonl"
}

// LogGroupPrefix is every stream in a log group.
func (l Layout) LogGroupPrefix(group string) string {
	return path.Join(PrefixLogs, group) + "/"
}
