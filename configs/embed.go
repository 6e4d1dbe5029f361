// Package configs bundles the sample catalog so the service runs without
// external files.
package configs

import _ "embed"

// SampleCatalog is the YAML catalog used when no catalog_path is configured.
//
//go:embed catalog.sample.yaml
var SampleCatalog []byte
