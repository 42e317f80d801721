package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"secfile/internal/app"
	s3store "secfile/internal/storage/s3"
)

func main() {
	cfg, logger, err := app.Setup(".env")
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	bucketName := cfg.Bucket
	if len(os.Args) > 1 {
		bucketName = os.Args[1]
	}
	if bucketName == "" {
		log.Fatal(app.ErrNoBucket)
	}

	ctx := context.Background()

	awsCfg, err := app.LoadAWS(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	// Print caller identity so it is clear which account will own the bucket
	stsClient := sts.NewFromConfig(awsCfg)
	identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		logger.WithError(err).Warn("unable to get caller identity")
	} else {
		fmt.Printf("AWS Account: %s\n", aws.ToString(identity.Account))
		fmt.Printf("AWS User ARN: %s\n", aws.ToString(identity.Arn))
	}

	client := s3.NewFromConfig(awsCfg)

	created, err := s3store.EnsureBucket(ctx, client, bucketName, awsCfg.Region)
	if err != nil {
		log.Fatalf("Unable to set up bucket: %v", err)
	}
	if created {
		fmt.Printf("Created bucket %s\n", bucketName)
	} else {
		fmt.Printf("Bucket %s already exists\n", bucketName)
	}

	fmt.Println("\nSetup completed successfully!")
	fmt.Println("\nBucket configuration:")
	fmt.Printf("- Name: %s\n", bucketName)
	fmt.Printf("- Region: %s\n", awsCfg.Region)
	fmt.Printf("- Run prefix: %s\n", cfg.RunPrefix)
	fmt.Println("\nOnly sealed segments and manifests are uploaded; credentials stay local.")
}
