// internal/app/store/images/imagestore.go
package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Bucket is the GridFS bucket name; files land in images.files/images.chunks.
const Bucket = "images"

// ErrNotFound is returned when no image has the given id.
var ErrNotFound = errors.New("image not found")

// Image is a stored image's metadata.
type Image struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

// Store keeps uploaded plan images.
type Store interface {
	Put(ctx context.Context, filename, contentType string, data []byte) (Image, error)
	Open(ctx context.Context, id string) (Image, io.ReadCloser, error)
}

// objectName gives every upload a unique name, keeping the extension.
func objectName(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return uuid.NewString() + ext
}

/* ----------------------------- GridFS ----------------------------- */

// GridFS stores images in a MongoDB GridFS bucket.
type GridFS struct {
	bucket *gridfs.Bucket
}

// NewGridFS opens the images bucket on db.
func NewGridFS(db *mongo.Database) (*GridFS, error) {
	b, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(Bucket))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return &GridFS{bucket: b}, nil
}

type fileMeta struct {
	ContentType string `bson:"content_type"`
}

func (s *GridFS) Put(ctx context.Context, filename, contentType string, data []byte) (Image, error) {
	name := objectName(filename)
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "content_type", Value: contentType}})

	us, err := s.bucket.OpenUploadStream(name, opts)
	if err != nil {
		return Image{}, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = us.SetWriteDeadline(dl)
	}
	if _, err := us.Write(data); err != nil {
		_ = us.Abort()
		return Image{}, err
	}
	if err := us.Close(); err != nil {
		return Image{}, err
	}

	id, _ := us.FileID.(primitive.ObjectID)
	return Image{
		ID:          id.Hex(),
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedAt:  time.Now().UTC(),
	}, nil
}

func (s *GridFS) Open(ctx context.Context, id string) (Image, io.ReadCloser, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Image{}, nil, ErrNotFound
	}
	ds, err := s.bucket.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return Image{}, nil, ErrNotFound
		}
		return Image{}, nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = ds.SetReadDeadline(dl)
	}

	f := ds.GetFile()
	var meta fileMeta
	if len(f.Metadata) > 0 {
		_ = bson.Unmarshal(f.Metadata, &meta)
	}
	return Image{
		ID:          id,
		Filename:    f.Name,
		ContentType: meta.ContentType,
		Size:        f.Length,
		UploadedAt:  f.UploadDate,
	}, ds, nil
}

/* ----------------------------- memory ----------------------------- */

// Memory keeps images in process. It backs the in-memory deployment and tests.
type Memory struct {
	mu     sync.RWMutex
	images map[string]memImage
}

type memImage struct {
	info Image
	data []byte
}

// NewMemory returns an empty in-process image store.
func NewMemory() *Memory {
	return &Memory{images: make(map[string]memImage)}
}

func (s *Memory) Put(ctx context.Context, filename, contentType string, data []byte) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	info := Image{
		ID:          primitive.NewObjectID().Hex(),
		Filename:    objectName(filename),
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedAt:  time.Now().UTC(),
	}
	s.mu.Lock()
	s.images[info.ID] = memImage{info: info, data: append([]byte(nil), data...)}
	s.mu.Unlock()
	return info, nil
}

func (s *Memory) Open(ctx context.Context, id string) (Image, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, nil, err
	}
	s.mu.RLock()
	img, ok := s.images[id]
	s.mu.RUnlock()
	if !ok {
		return Image{}, nil, ErrNotFound
	}
	return img.info, io.NopCloser(bytes.NewReader(img.data)), nil
}
