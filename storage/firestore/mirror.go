package firestoremirror

import (
	"context"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/mirror"
)

const usersCollection = "users"

// Writer merges mirror documents into the legacy per-user collections.
type Writer struct {
	client *firestore.Client
}

var _ mirror.Writer = (*Writer)(nil) // interface compliance check

// clientOptions accepts a credentials file path or inline JSON credentials.
// Without either, application default credentials are used.
func clientOptions(conf core.MirrorConfig) []option.ClientOption {
	creds := strings.TrimSpace(conf.CredentialsFile)
	switch {
	case creds == "":
		return nil
	case strings.HasPrefix(creds, "{"):
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	default:
		return []option.ClientOption{option.WithCredentialsFile(creds)}
	}
}

func NewWriter(ctx context.Context, conf core.MirrorConfig) (*Writer, error) {
	if conf.ProjectID == "" {
		return nil, errors.New("mirror project id is not configured")
	}
	client, err := firestore.NewClient(ctx, conf.ProjectID, clientOptions(conf)...)
	if err != nil {
		return nil, errors.Wrap(err, "creating firestore client")
	}
	return &Writer{client: client}, nil
}

func (w *Writer) Upsert(ctx context.Context, uid, collection, id string, doc map[string]interface{}) error {
	ref := w.client.Collection(usersCollection).Doc(uid).Collection(collection).Doc(id)
	if _, err := ref.Set(ctx, doc, firestore.MergeAll); err != nil {
		return errors.Wrapf(err, "setting %s", ref.Path)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.client.Close()
}
