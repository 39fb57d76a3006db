package root

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gocloud.dev/gcp"

	"framefeed/internal/metric"
	"framefeed/internal/storage"
)

var Cmd = &cobra.Command{
	Use:   "framefeed",
	Short: "Framefeed video training pipeline",
	Long:  `Framefeed: normalize raw video into fixed-geometry episodes and serve shuffled training windows`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Usage()
	},
}

func Execute() {
	log.SetLevel(log.DebugLevel)

	if err := Cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	Cmd.PersistentFlags().String("storage", "/data", "Local storage directory")

	Cmd.PersistentFlags().String("aws-bucket", "", "AWS bucket")
	Cmd.PersistentFlags().String("aws-region", "", "AWS region")
	Cmd.PersistentFlags().String("aws-endpoint", "", "AWS endpoint")
	Cmd.PersistentFlags().String("aws-id", "", "AWS id")
	Cmd.PersistentFlags().String("aws-secret", "", "AWS secret")

	Cmd.PersistentFlags().String("gcs-bucket", "", "GCS bucket")

	Cmd.PersistentFlags().String("influxdb", "", "InfluxDB endpoint")
	Cmd.PersistentFlags().String("influxdb-token", "", "InfluxDB token")
	Cmd.PersistentFlags().String("influxdb-bucket", "", "InfluxDB bucket")
	Cmd.PersistentFlags().String("influxdb-org", "", "InfluxDB organization")

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(Cmd.PersistentFlags()); err != nil {
		log.WithError(err).Fatal("flag binding failed")
	}
}

type Component struct {
	Bucket storage.Bucket
	Metric metric.Client
}

// GetComponent wires the shared pieces a command asked for. The bucket
// backend follows configuration: S3 or GCS when one is named, otherwise
// the local storage directory.
func GetComponent(loadStorage, loadMetric bool) *Component {
	component := &Component{Metric: &metric.Null{}}

	if loadStorage {
		bucket, name, err := openBucket(context.Background())

		if err != nil {
			log.WithError(err).Fatalf("unable to open storage '%s'", name)
		}

		log.Infof("connected to storage '%s'", name)
		component.Bucket = bucket
	}

	if loadMetric {
		influxDbAddr := viper.GetString("influxdb")

		if influxDbAddr != "" {
			metricClient, err := metric.NewInfluxdb(metric.InfluxdbConfig{
				Addr:   influxDbAddr,
				Token:  viper.GetString("influxdb-token"),
				Bucket: viper.GetString("influxdb-bucket"),
				Org:    viper.GetString("influxdb-org"),
			})

			if err != nil {
				log.WithError(err).Fatalf("unable to connect to metrics '%s'", influxDbAddr)
			}

			log.Infof("connected to metrics '%s'", influxDbAddr)
			component.Metric = metricClient
		}
	}

	return component
}

func openBucket(ctx context.Context) (storage.Bucket, string, error) {
	if bucketName := viper.GetString("aws-bucket"); bucketName != "" {
		bucket, err := storage.NewS3(ctx, bucketName, &aws.Config{
			Endpoint:    aws.String(viper.GetString("aws-endpoint")),
			Region:      aws.String(viper.GetString("aws-region")),
			Credentials: credentials.NewStaticCredentials(viper.GetString("aws-id"), viper.GetString("aws-secret"), ""),
		})

		return bucket, bucketName, err
	}

	if bucketName := viper.GetString("gcs-bucket"); bucketName != "" {
		creds, err := gcp.DefaultCredentials(ctx)

		if err != nil {
			return nil, bucketName, err
		}

		client, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))

		if err != nil {
			return nil, bucketName, err
		}

		bucket, err := storage.NewGCS(ctx, bucketName, client)

		return bucket, bucketName, err
	}

	path := viper.GetString("storage")
	bucket, err := storage.NewLocal(ctx, path)

	return bucket, path, err
}
