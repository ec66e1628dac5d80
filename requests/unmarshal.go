package requests

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/brettbedarf/devfs/internal/util"
	"github.com/brettbedarf/devfs/server"
)

// GetNodeType extracts the node type from JSON without full unmarshaling
func GetNodeType(data []byte) (server.NodeRequestType, error) {
	var meta struct {
		Type server.NodeRequestType `json:"type"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", err
	}
	return meta.Type, nil
}

// UnmarshalFileRequest handles file-specific unmarshaling
func UnmarshalFileRequest(data []byte) (*server.FileRequest, error) {
	var dto NodeRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	if dto.Source == "" {
		return nil, fmt.Errorf("file %q has no source", dto.Path)
	}
	return &server.FileRequest{NodeRequest: convertNodeDTO(dto)}, nil
}

// UnmarshalDirRequest handles directory unmarshaling
func UnmarshalDirRequest(data []byte) (*server.DirRequest, error) {
	var dto NodeRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	return &server.DirRequest{NodeRequest: convertNodeDTO(dto)}, nil
}

// UnmarshalTable parses a JSON array of node requests. Entries that fail to
// parse or carry an unknown type are logged and skipped.
func UnmarshalTable(data []byte) (*Table, error) {
	logger := util.GetLogger("requests.UnmarshalTable")

	var rawNodes []json.RawMessage
	if err := json.Unmarshal(data, &rawNodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}

	table := &Table{}
	for i, rawNode := range rawNodes {
		nodeType, err := GetNodeType(rawNode)
		if err != nil {
			logger.Error().Err(err).Int("index", i).Msg("Failed to get node type")
			continue
		}

		switch nodeType {
		case server.FileNodeType:
			req, err := UnmarshalFileRequest(rawNode)
			if err != nil {
				logger.Error().Err(err).Int("index", i).Msg("Failed to unmarshal file request")
				continue
			}
			table.Files = append(table.Files, req)
		case server.DirNodeType:
			req, err := UnmarshalDirRequest(rawNode)
			if err != nil {
				logger.Error().Err(err).Int("index", i).Msg("Failed to unmarshal directory request")
				continue
			}
			table.Dirs = append(table.Dirs, req)
		default:
			logger.Warn().Str("type", string(nodeType)).Int("index", i).Msg("Unknown node type")
		}
	}
	logger.Debug().Int("files", len(table.Files)).Int("directories", len(table.Dirs)).Msg("Loaded node requests")
	return table, nil
}

// LoadTable reads and parses a mount table file
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalTable(data)
}

// Apply adds every directory and then every file to srv. Failures are
// logged and counted; the returned counts are the nodes actually added.
func (t *Table) Apply(srv *server.Server) (dirs, files int) {
	logger := util.GetLogger("requests.Apply")

	for _, req := range t.Dirs {
		if err := srv.AddDir(req); err != nil {
			logger.Error().Err(err).Str("path", req.Path).Msg("Failed to add directory request")
			continue
		}
		dirs++
	}
	for _, req := range t.Files {
		if err := srv.AddFile(req); err != nil {
			logger.Error().Err(err).Str("path", req.Path).Msg("Failed to add file request")
			continue
		}
		files++
	}
	logger.Info().Int("directories", dirs).Int("files", files).Msg("Added new nodes to filesystem")
	return dirs, files
}

// Conversion logic with defaults in the unmarshaling layer. Zero values are
// filled in by the server when the node is created.
func convertNodeDTO(dto NodeRequestDTO) server.NodeRequest {
	req := server.NodeRequest{
		Path:     dto.Path,
		Source:   dto.Source,
		Perms:    util.ValueOrDefault(dto.Perms, 0),
		OwnerUID: util.ValueOrDefault(dto.OwnerUID, 0),
		OwnerGID: util.ValueOrDefault(dto.OwnerGID, 0),
	}
	if dto.Mtime != nil {
		req.Mtime = *dto.Mtime
	}
	return req
}
