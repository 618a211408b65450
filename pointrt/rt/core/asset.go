package core

import "github.com/google/uuid"

// AssetId identifies a geometry, material, texture or scene node.
type AssetId string

func NewAssetId() AssetId {
	return AssetId(uuid.NewString())
}
