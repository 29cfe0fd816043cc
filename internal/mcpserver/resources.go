package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/ummon-dev/ummon/internal/entity"
)

const knowledgeGraphResourceURI = "knowledge_graph.json"

// resourceDump is the serialized shape of resources/read on
// knowledge_graph.json: every entity and relationship currently indexed.
type resourceDump struct {
	Entities      []entity.Entity      `json:"entities"`
	Relationships []entity.Relationship `json:"relationships"`
}

func resourcesList() ResourcesListResult {
	return ResourcesListResult{Resources: []ResourceInfo{
		{
			URI:         knowledgeGraphResourceURI,
			Name:        "Knowledge Graph",
			Description: "The full knowledge graph in JSON format",
			Writable:    false,
		},
	}}
}

func (s *Server) handleResourcesRead(req rpcRequest) *rpcResponse {
	var params ResourceReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, entity.RPCInvalidParams, fmt.Sprintf("invalid resources/read params: %v", err))
	}
	if params.URI != knowledgeGraphResourceURI {
		return errorResponse(req.ID, entity.RPCMethodNotFound, fmt.Sprintf("unknown resource %q", params.URI))
	}

	dump := resourceDump{Entities: s.Graph.AllEntities()}
	for _, e := range dump.Entities {
		for _, relID := range s.Graph.OutgoingIDs(e.ID) {
			if r, ok := s.Graph.Relationship(relID); ok {
				dump.Relationships = append(dump.Relationships, r)
			}
		}
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return errorResponse(req.ID, entity.RPCInternalError, fmt.Sprintf("failed to serialize knowledge graph: %v", err))
	}
	return resultResponse(req.ID, ResourceReadResult{Content: string(data)})
}
