package datasource

import (
	"fmt"
	"io"
	"os"

	"github.com/vanderheijden86/impactview/pkg/model"
)

// Load reads a saved response. path may be a JSON file, a directory (the
// freshest valid *.json wins) or "-" for stdin.
func Load(path string, stdin io.Reader) (model.PromptResponse, DataSource, error) {
	if path == "-" {
		resp, err := decode(stdin)
		if err != nil {
			return model.PromptResponse{}, DataSource{}, fmt.Errorf("reading stdin: %w", err)
		}
		return resp, DataSource{Type: SourceTypeStdin, Path: "-", Valid: true, GraphCount: len(resp.Graphs)}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return model.PromptResponse{}, DataSource{}, err
	}
	if info.IsDir() {
		sources, err := DiscoverSources(path, DiscoveryOptions{})
		if err != nil {
			return model.PromptResponse{}, DataSource{}, err
		}
		best, err := SelectBestSource(sources)
		if err != nil {
			return model.PromptResponse{}, DataSource{}, fmt.Errorf("%s: %w", path, err)
		}
		path, info = best.Path, nil
	}

	resp, err := readFile(path)
	if err != nil {
		return model.PromptResponse{}, DataSource{}, fmt.Errorf("loading %s: %w", path, err)
	}
	src := DataSource{Type: SourceTypeFile, Path: path, Valid: true, GraphCount: len(resp.Graphs)}
	if info == nil {
		info, err = os.Stat(path)
	}
	if err == nil && info != nil {
		src.ModTime, src.Size = info.ModTime(), info.Size()
	}
	return resp, src, nil
}

// LoadPanel is Load followed by PanelData.
func LoadPanel(path string, stdin io.Reader) (model.PanelData, error) {
	resp, _, err := Load(path, stdin)
	if err != nil {
		return model.PanelData{}, err
	}
	return resp.PanelData(), nil
}
