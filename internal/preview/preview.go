// Package preview provides built-in sample listings for rendering the digest
// without calling any external service.
package preview

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/job-digest/job-digest/internal/jobs"
)

//go:embed samples.yaml
var samplesYAML []byte

// Samples decodes the embedded sample listings. Listings without a posting
// URL get a synthesized search link, as the filter stage would give them.
func Samples() ([]jobs.Job, error) {
	var list []jobs.Job
	if err := yaml.Unmarshal(samplesYAML, &list); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}

	for i := range list {
		if list[i].URL == "" {
			list[i].URL = jobs.SearchURL(list[i].Title, list[i].Company)
			list[i].URLIsSearch = true
		}
	}
	return list, nil
}
