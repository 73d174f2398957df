package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/iksnae/chat-session/internal"
)

// YAMLExporter writes the same document as JSONExporter, as YAML
type YAMLExporter struct{}

func (e *YAMLExporter) Export(transcript *internal.Transcript, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(transcript)); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}
