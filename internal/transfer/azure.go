package transfer

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// openAzure streams a blob addressed by a SAS URL. Retries are left to
// ExecuteWithRetry, so the SDK pipeline makes a single attempt.
func openAzure(ctx context.Context, httpClient *nethttp.Client, u *url.URL) (io.ReadCloser, int64, error) {
	parts, err := azblob.ParseURL(u.String())
	if err != nil {
		return nil, 0, fmt.Errorf("invalid blob URL: %w", err)
	}
	container, blobName := parts.ContainerName, parts.BlobName
	if container == "" || blobName == "" {
		return nil, 0, fmt.Errorf("blob URL has no container or blob name (host %s)", parts.Host)
	}
	parts.ContainerName = ""
	parts.BlobName = ""

	client, err := azblob.NewClientWithNoCredential(parts.String(), &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: httpClient,
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create Azure client: %w", err)
	}

	resp, err := client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("azure download %s/%s: %w", container, blobName, err)
	}
	var size int64
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}
	return resp.Body, size, nil
}
