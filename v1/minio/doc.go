// Package minio stores opaque payloads in a MinIO or S3-compatible bucket.
//
// It offers Put, Get and Delete against one bucket,
// with an optional key prefix and a per-request timeout. The bucket is checked
// on startup and created when AccessBucketCreation is set.
//
//	client, err := minio.NewClient(minio.Config{
//		Connection: minio.ConnectionConfig{
//			Endpoint:             "localhost:9000",
//			AccessKeyID:          "minioadmin",
//			SecretAccessKey:      "minioadmin",
//			BucketName:           "schemawatch",
//			AccessBucketCreation: true,
//		},
//		Prefix: "quarantine",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.GracefulShutdown()
//
//	key, err := client.Put(ctx, "record.json", raw, "application/octet-stream", nil)
package minio
