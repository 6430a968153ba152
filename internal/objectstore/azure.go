package objectstore

import (
	"context"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

type azureStore struct {
	client     *azblob.Client
	account    string
	container  string
	prefix     string
	publicBase string
}

func NewAzureBlobStore(publicBase string) (Store, error) {
	account := os.Getenv("AZURE_STORAGE_ACCOUNT")
	key := os.Getenv("AZURE_STORAGE_KEY")
	container := os.Getenv("AZURE_BLOB_CONTAINER")
	if account == "" || key == "" || container == "" {
		return nil, fmt.Errorf("AZURE_STORAGE_ACCOUNT/AZURE_STORAGE_KEY/AZURE_BLOB_CONTAINER required for azure storage")
	}
	credential, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("build shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &azureStore{
		client:     client,
		account:    account,
		container:  container,
		prefix:     os.Getenv("AZURE_BLOB_PREFIX"),
		publicBase: publicBase,
	}, nil
}

func (a *azureStore) Name() string {
	return "azure"
}

func (a *azureStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	opts := &azblob.UploadBufferOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := a.client.UploadBuffer(ctx, a.container, joinKey(a.prefix, key), data, opts); err != nil {
		return fmt.Errorf("azure upload %s: %w", key, err)
	}
	return nil
}

func (a *azureStore) PublicURL(key string) string {
	if a.publicBase != "" {
		return publicURL(a.publicBase, joinKey(a.prefix, key))
	}
	base := fmt.Sprintf("https://%s.blob.core.windows.net/%s", a.account, a.container)
	return publicURL(base, joinKey(a.prefix, key))
}
