package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ummon-dev/ummon/internal/entity"
)

const sampleLegacyGraph = `{
  "entities": {
    "pkg::login": {
      "Function": {
        "base": {
          "id": "pkg::login",
          "name": "login",
          "entity_type": "Function",
          "location": {"start": {"line": 10, "column": 1, "offset": 100}, "end": {"line": 20, "column": 1, "offset": 300}},
          "file_path": "src/auth.rs",
          "containing_entity": null,
          "documentation": "Authenticates a user.",
          "metadata": {}
        },
        "parameters": [],
        "return_type": null,
        "visibility": "Public",
        "is_async": false,
        "is_static": false,
        "is_constructor": false,
        "is_abstract": false
      }
    },
    "pkg::Session": {
      "Base": {
        "id": "pkg::Session",
        "name": "Session",
        "entity_type": {"Other": "Widget"},
        "location": null,
        "file_path": null,
        "containing_entity": null,
        "documentation": null,
        "metadata": {"note": "placeholder"}
      }
    }
  },
  "relationship_data": [
    {
      "id": "pkg::login->pkg::Session::Uses",
      "source_id": "pkg::login",
      "target_id": "pkg::Session",
      "relationship_type": "Uses",
      "weight": 1.0,
      "metadata": {}
    }
  ]
}`

func TestDecodeLegacyGraphFunctionVariant(t *testing.T) {
	entities, _, err := decodeLegacyGraph([]byte(sampleLegacyGraph))
	require.NoError(t, err)

	var login *entity.Entity
	for i := range entities {
		if entities[i].ID == "pkg::login" {
			login = &entities[i]
		}
	}
	require.NotNil(t, login)
	require.Equal(t, "login", login.Name)
	require.Equal(t, entity.KindFunction, login.Kind)
	require.Equal(t, "Authenticates a user.", login.Documentation)
	require.NotNil(t, login.Location)
	require.Equal(t, "src/auth.rs", login.Location.FilePath)
	require.Equal(t, 10, login.Location.Start.Line)
	require.Equal(t, 20, login.Location.End.Line)
}

func TestDecodeLegacyGraphBaseVariantAndOtherKind(t *testing.T) {
	entities, _, err := decodeLegacyGraph([]byte(sampleLegacyGraph))
	require.NoError(t, err)

	var session *entity.Entity
	for i := range entities {
		if entities[i].ID == "pkg::Session" {
			session = &entities[i]
		}
	}
	require.NotNil(t, session)
	require.Equal(t, entity.Kind("Widget"), session.Kind)
	require.Equal(t, "placeholder", session.Metadata["note"])
	require.Nil(t, session.Location)
}

func TestDecodeLegacyGraphRelationship(t *testing.T) {
	_, relationships, err := decodeLegacyGraph([]byte(sampleLegacyGraph))
	require.NoError(t, err)
	require.Len(t, relationships, 1)
	r := relationships[0]
	require.Equal(t, entity.ID("pkg::login"), r.SourceID)
	require.Equal(t, entity.ID("pkg::Session"), r.TargetID)
	require.Equal(t, entity.RelUses, r.Kind)
	require.Equal(t, 1.0, r.Weight)
}

func TestDecodeLegacyGraphRejectsMultiKeyVariant(t *testing.T) {
	_, _, err := decodeLegacyGraph([]byte(`{"entities": {"x": {"Function": {}, "Type": {}}}, "relationship_data": []}`))
	require.Error(t, err)
}
