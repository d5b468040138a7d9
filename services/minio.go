package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	appContext "github.com/alphabatem/common/context"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

// MinIOService stores published structure documents. Every version of a
// subject's structure is its own immutable object; publishing never
// overwrites.
type MinIOService struct {
	appContext.DefaultService
	client     *minio.Client
	bucketName string
	endpoint   string
	accessKey  string
	secretKey  string
	useSSL     bool
}

const MINIO_SVC = "minio_svc"

func (svc MinIOService) Id() string {
	return MINIO_SVC
}

func (svc *MinIOService) Configure(ctx *appContext.Context) error {
	svc.endpoint = os.Getenv("MINIO_ENDPOINT")
	if svc.endpoint == "" {
		svc.endpoint = "localhost:9000"
	}

	svc.accessKey = os.Getenv("MINIO_ACCESS_KEY")
	if svc.accessKey == "" {
		svc.accessKey = "admin"
	}

	svc.secretKey = os.Getenv("MINIO_SECRET_KEY")
	if svc.secretKey == "" {
		svc.secretKey = "password123"
	}

	svc.useSSL = os.Getenv("MINIO_USE_SSL") == "true"

	svc.bucketName = os.Getenv("MINIO_BUCKET_NAME")
	if svc.bucketName == "" {
		svc.bucketName = "pathwise-structures"
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *MinIOService) Start() error {
	client, err := minio.New(svc.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(svc.accessKey, svc.secretKey, ""),
		Secure: svc.useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %v", err)
	}

	svc.client = client

	if err := svc.ensureBucket(); err != nil {
		return fmt.Errorf("failed to ensure bucket exists: %v", err)
	}

	log.Printf("MinIO service started successfully with endpoint: %s", svc.endpoint)
	return nil
}

func (svc *MinIOService) ensureBucket() error {
	ctx := context.Background()

	exists, err := svc.client.BucketExists(ctx, svc.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %v", err)
	}

	if !exists {
		err = svc.client.MakeBucket(ctx, svc.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %v", err)
		}
		log.Printf("Created MinIO bucket: %s", svc.bucketName)
	}

	return nil
}

// StructureObjectKey names the object holding one published version.
func StructureObjectKey(subjectID string, version int) string {
	return fmt.Sprintf("subjects/%s/structure/v%d.json", subjectID, version)
}

// PutStructureDocument uploads a canonical structure document and returns
// the object key and etag.
func (svc *MinIOService) PutStructureDocument(subjectID string, version int, doc []byte) (string, string, error) {
	ctx := context.Background()
	objectKey := StructureObjectKey(subjectID, version)

	uploadInfo, err := svc.client.PutObject(ctx, svc.bucketName, objectKey,
		bytes.NewReader(doc), int64(len(doc)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload structure document: %v", err)
	}

	return objectKey, uploadInfo.ETag, nil
}

// GetStructureDocument fetches a published document by object key.
func (svc *MinIOService) GetStructureDocument(objectKey string) ([]byte, error) {
	ctx := context.Background()

	obj, err := svc.client.GetObject(ctx, svc.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch structure document: %v", err)
	}
	defer obj.Close()

	doc, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read structure document: %v", err)
	}
	return doc, nil
}

func (svc *MinIOService) GetBucketName() string {
	return svc.bucketName
}
