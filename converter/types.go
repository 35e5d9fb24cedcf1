package converter

// SampleTypeConfig tells Pyroscope how to display the sample types of a
// converted profile.
var SampleTypeConfig = map[string]map[string]interface{}{
	"samples": {
		"units":        "count",
		"display-name": "occurrences",
		"aggregation":  "sum",
		"cumulative":   false,
		"sampled":      true,
	},
	"depth": {
		"units":        "frames",
		"display-name": "cumulative-depth",
		"aggregation":  "sum",
		"cumulative":   false,
		"sampled":      false,
	},
}
