package processor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SegmentRecord is one placed segment of a written output
type SegmentRecord struct {
	Source string       `yaml:"source"`
	Start  float64      `yaml:"start"`
	End    float64      `yaml:"end"`
	Effect media.Effect `yaml:"effect"`
}

// OutputRecord describes one written output
type OutputRecord struct {
	Path     string          `yaml:"path"`
	Duration float64         `yaml:"duration"`
	Attempt  string          `yaml:"attempt"`
	Segments []SegmentRecord `yaml:"segments"`
}

// Manifest is the batch history written next to the outputs
type Manifest struct {
	BatchID  string         `yaml:"batch_id"`
	Seed     uint64         `yaml:"seed"`
	Platform string         `yaml:"platform"`
	Outputs  []OutputRecord `yaml:"outputs"`
}

// ManifestPath is where the manifest of a batch with the given prefix goes
func ManifestPath(dir, prefix string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_manifest.yaml", sanitizeFilename(prefix)))
}

func (a *Assembler) manifest() Manifest {
	outputs := a.records
	if outputs == nil {
		outputs = []OutputRecord{}
	}
	return Manifest{
		BatchID:  a.batchID,
		Seed:     a.seed,
		Platform: a.platform.GetName(),
		Outputs:  outputs,
	}
}

// writeManifest records the batch; failure to do so is only reported
func (a *Assembler) writeManifest() {
	path := ManifestPath(a.cfg.Output.Dir, a.cfg.Output.Prefix)
	if err := saveManifest(path, a.manifest()); err != nil {
		a.warn(err, "Failed to write manifest")
		return
	}
	a.logger.Debug().Str("path", path).Msg("wrote manifest")
}

func saveManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "failed to marshal manifest")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write manifest")
	}
	return nil
}
