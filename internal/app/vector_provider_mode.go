package app

import (
	"errors"
	"fmt"

	"github.com/yungbote/unravel-backend/internal/platform/gcp"
	"github.com/yungbote/unravel-backend/internal/platform/llamacloud"
	"github.com/yungbote/unravel-backend/internal/platform/pinecone"
	"github.com/yungbote/unravel-backend/internal/platform/qdrant"
)

type VectorProvider string

const (
	// VectorProviderLlamaCloud is the managed index that also ingests uploads.
	VectorProviderLlamaCloud VectorProvider = "llamacloud"
	VectorProviderPinecone   VectorProvider = "pinecone"
	VectorProviderQdrant     VectorProvider = "qdrant"
)

const (
	modeSourceEnv            = "retriever_provider_env"
	modeSourceStorageDefault = "object_storage_mode_default"
)

type VectorProviderConfigErrorCode string

const (
	VectorProviderConfigErrorInvalidProvider      VectorProviderConfigErrorCode = "invalid_provider"
	VectorProviderConfigErrorInvalidStorageMode   VectorProviderConfigErrorCode = "invalid_storage_mode"
	VectorProviderConfigErrorMissingQdrantURL     VectorProviderConfigErrorCode = "missing_qdrant_url"
	VectorProviderConfigErrorInvalidQdrantURL     VectorProviderConfigErrorCode = "invalid_qdrant_url"
	VectorProviderConfigErrorMissingQdrantColl    VectorProviderConfigErrorCode = "missing_qdrant_collection"
	VectorProviderConfigErrorInvalidQdrantVector  VectorProviderConfigErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderConfigErrorUnknownQdrantFailure VectorProviderConfigErrorCode = "qdrant_config_error"
	VectorProviderConfigErrorMissingLlamaAPIKey   VectorProviderConfigErrorCode = "missing_llamacloud_api_key"
	VectorProviderConfigErrorInvalidLlamaURL      VectorProviderConfigErrorCode = "invalid_llamacloud_url"
	VectorProviderConfigErrorPineconeConfig       VectorProviderConfigErrorCode = "pinecone_config_error"
)

type VectorProviderConfigError struct {
	Code        VectorProviderConfigErrorCode
	Provider    VectorProvider
	StorageMode string
	Cause       error
}

func (e *VectorProviderConfigError) Error() string {
	if e == nil {
		return "invalid vector provider config"
	}
	return fmt.Sprintf(
		"invalid vector provider config (code=%s provider=%q object_storage_mode=%q): %v",
		e.Code,
		e.Provider,
		e.StorageMode,
		e.Cause,
	)
}

func (e *VectorProviderConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// VectorProviderConfig carries the settings of the selected provider only.
type VectorProviderConfig struct {
	Provider   VectorProvider
	ModeSource string
	LlamaCloud llamacloud.Config
	Qdrant     qdrant.Config
	Pinecone   pinecone.Config
}

// resolveVectorProviderConfig honors an explicit provider and otherwise
// follows the storage mode: the emulator stack runs Qdrant, GCS runs
// LlamaCloud.
func resolveVectorProviderConfig(explicit string, storageMode gcp.StorageMode) (VectorProviderConfig, error) {
	out := VectorProviderConfig{Provider: VectorProvider(explicit), ModeSource: modeSourceEnv}
	if explicit == "" {
		out.ModeSource = modeSourceStorageDefault
		switch storageMode {
		case gcp.StorageModeGCSEmulator:
			out.Provider = VectorProviderQdrant
		case gcp.StorageModeGCS:
			out.Provider = VectorProviderLlamaCloud
		default:
			return VectorProviderConfig{}, &VectorProviderConfigError{
				Code:        VectorProviderConfigErrorInvalidStorageMode,
				StorageMode: string(storageMode),
				Cause:       fmt.Errorf("unsupported object storage mode %q", storageMode),
			}
		}
	}

	switch out.Provider {
	case VectorProviderLlamaCloud:
		lcfg, err := llamacloud.ResolveConfigFromEnv()
		if err != nil {
			return VectorProviderConfig{}, mapVectorProviderConfigError(out.Provider, storageMode, err)
		}
		out.LlamaCloud = lcfg
	case VectorProviderQdrant:
		qcfg, err := qdrant.ResolveConfigFromEnv()
		if err != nil {
			return VectorProviderConfig{}, mapVectorProviderConfigError(out.Provider, storageMode, err)
		}
		out.Qdrant = qcfg
	case VectorProviderPinecone:
		pcfg, err := pinecone.ResolveConfigFromEnv()
		if err != nil {
			return VectorProviderConfig{}, mapVectorProviderConfigError(out.Provider, storageMode, err)
		}
		out.Pinecone = pcfg
	default:
		return VectorProviderConfig{}, &VectorProviderConfigError{
			Code:        VectorProviderConfigErrorInvalidProvider,
			Provider:    out.Provider,
			StorageMode: string(storageMode),
			Cause:       fmt.Errorf("unsupported retriever provider %q", out.Provider),
		}
	}
	return out, nil
}

func mapVectorProviderConfigError(provider VectorProvider, storageMode gcp.StorageMode, err error) error {
	code := VectorProviderConfigErrorPineconeConfig
	var qerr *qdrant.ConfigError
	var lerr *llamacloud.ConfigError
	switch {
	case errors.As(err, &qerr):
		code = VectorProviderConfigErrorUnknownQdrantFailure
		switch qerr.Code {
		case qdrant.ConfigErrorMissingURL:
			code = VectorProviderConfigErrorMissingQdrantURL
		case qdrant.ConfigErrorInvalidURL:
			code = VectorProviderConfigErrorInvalidQdrantURL
		case qdrant.ConfigErrorMissingCollection:
			code = VectorProviderConfigErrorMissingQdrantColl
		case qdrant.ConfigErrorInvalidVectorDim:
			code = VectorProviderConfigErrorInvalidQdrantVector
		}
	case errors.As(err, &lerr):
		code = VectorProviderConfigErrorMissingLlamaAPIKey
		if lerr.Code == llamacloud.ConfigErrorInvalidURL {
			code = VectorProviderConfigErrorInvalidLlamaURL
		}
	}
	return &VectorProviderConfigError{
		Code:        code,
		Provider:    provider,
		StorageMode: string(storageMode),
		Cause:       err,
	}
}
