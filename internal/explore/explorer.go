// Package explore inventories account resources across the services most
// relevant to posture review. Discovery is read-only.
package explore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/parapet-sh/parapet/pkg/logger"
)

// Service client interfaces, narrowed to the calls discovery needs.
type (
	// EC2API describes instances.
	EC2API interface {
		DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	}

	// S3API lists buckets.
	S3API interface {
		ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	}

	// RDSAPI describes database instances.
	RDSAPI interface {
		DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	}

	// LambdaAPI lists functions.
	LambdaAPI interface {
		ListFunctions(ctx context.Context, params *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error)
	}

	// IAMAPI lists users.
	IAMAPI interface {
		ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error)
	}
)

// ResourceItem is one discovered resource. Which fields are set depends on
// the service that owns it.
type ResourceItem struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	State        string `json:"state,omitempty"`
	Type         string `json:"type,omitempty"`
	Engine       string `json:"engine,omitempty"`
	Runtime      string `json:"runtime,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// ServiceInventory holds one service's resources, or the error that kept
// them from being listed. A failing service never fails the whole inventory.
type ServiceInventory struct {
	Items []ResourceItem `json:"items"`
	Error string         `json:"error,omitempty"`
}

// Inventory is the discovery result across all requested services.
type Inventory struct {
	Resources      map[string]ServiceInventory `json:"resources"`
	TotalResources int                         `json:"total_resources"`
}

// Services lists the supported service names in stable order.
func Services() []string {
	return []string{"ec2", "iam", "lambda", "rds", "s3"}
}

// ValidService reports whether name is a supported service filter.
func ValidService(name string) bool {
	for _, s := range Services() {
		if s == name {
			return true
		}
	}
	return false
}

// Explorer discovers resources through per-service clients.
type Explorer struct {
	ec2Client    EC2API
	s3Client     S3API
	rdsClient    RDSAPI
	lambdaClient LambdaAPI
	iamClient    IAMAPI

	logger logger.Logger
	tracer trace.Tracer
}

// NewExplorer builds an explorer on real AWS clients from cfg.
func NewExplorer(cfg aws.Config, log logger.Logger) *Explorer {
	return NewExplorerWithClients(
		ec2.NewFromConfig(cfg),
		s3.NewFromConfig(cfg),
		rds.NewFromConfig(cfg),
		lambda.NewFromConfig(cfg),
		iam.NewFromConfig(cfg),
		log,
	)
}

// NewExplorerWithClients wires an explorer over explicit clients.
func NewExplorerWithClients(ec2c EC2API, s3c S3API, rdsc RDSAPI, lambdac LambdaAPI, iamc IAMAPI, log logger.Logger) *Explorer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Explorer{
		ec2Client:    ec2c,
		s3Client:     s3c,
		rdsClient:    rdsc,
		lambdaClient: lambdac,
		iamClient:    iamc,
		logger:       log,
		tracer:       otel.Tracer("parapet/explore"),
	}
}

// Explore inventories the requested service, or all supported services when
// serviceFilter is empty. Per-service failures are recorded inline.
func (e *Explorer) Explore(ctx context.Context, serviceFilter string) (Inventory, error) {
	ctx, span := e.tracer.Start(ctx, "explore.resources",
		trace.WithAttributes(attribute.String("service_filter", serviceFilter)))
	defer span.End()

	services := Services()
	if serviceFilter != "" {
		if !ValidService(serviceFilter) {
			return Inventory{}, fmt.Errorf("unknown service %q (want one of %v)", serviceFilter, Services())
		}
		services = []string{serviceFilter}
	}

	inv := Inventory{Resources: make(map[string]ServiceInventory, len(services))}
	for _, service := range services {
		items, err := e.list(ctx, service)
		if err != nil {
			e.logger.Warn("Resource listing failed", "service", service, "error", err)
			inv.Resources[service] = ServiceInventory{Items: []ResourceItem{}, Error: err.Error()}
			continue
		}
		inv.Resources[service] = ServiceInventory{Items: items}
		inv.TotalResources += len(items)
	}
	return inv, nil
}

func (e *Explorer) list(ctx context.Context, service string) ([]ResourceItem, error) {
	switch service {
	case "ec2":
		return e.listInstances(ctx)
	case "s3":
		return e.listBuckets(ctx)
	case "rds":
		return e.listDatabases(ctx)
	case "lambda":
		return e.listFunctions(ctx)
	case "iam":
		return e.listUsers(ctx)
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}
}

func (e *Explorer) listInstances(ctx context.Context) ([]ResourceItem, error) {
	var items []ResourceItem
	var nextToken *string
	for {
		out, err := e.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: nextToken})
		if err != nil {
			return nil, err
		}
		for _, reservation := range out.Reservations {
			for _, instance := range reservation.Instances {
				item := ResourceItem{
					ID:   aws.ToString(instance.InstanceId),
					Type: string(instance.InstanceType),
				}
				if instance.State != nil {
					item.State = string(instance.State.Name)
				}
				items = append(items, item)
			}
		}
		if out.NextToken == nil {
			return items, nil
		}
		nextToken = out.NextToken
	}
}

func (e *Explorer) listBuckets(ctx context.Context) ([]ResourceItem, error) {
	out, err := e.s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}
	items := make([]ResourceItem, 0, len(out.Buckets))
	for _, bucket := range out.Buckets {
		item := ResourceItem{Name: aws.ToString(bucket.Name)}
		if bucket.CreationDate != nil {
			item.CreatedAt = bucket.CreationDate.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (e *Explorer) listDatabases(ctx context.Context) ([]ResourceItem, error) {
	var items []ResourceItem
	var marker *string
	for {
		out, err := e.rdsClient.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{Marker: marker})
		if err != nil {
			return nil, err
		}
		for _, db := range out.DBInstances {
			items = append(items, ResourceItem{
				ID:     aws.ToString(db.DBInstanceIdentifier),
				State:  aws.ToString(db.DBInstanceStatus),
				Engine: aws.ToString(db.Engine),
			})
		}
		if out.Marker == nil {
			return items, nil
		}
		marker = out.Marker
	}
}

func (e *Explorer) listFunctions(ctx context.Context) ([]ResourceItem, error) {
	var items []ResourceItem
	var marker *string
	for {
		out, err := e.lambdaClient.ListFunctions(ctx, &lambda.ListFunctionsInput{Marker: marker})
		if err != nil {
			return nil, err
		}
		for _, fn := range out.Functions {
			items = append(items, ResourceItem{
				Name:         aws.ToString(fn.FunctionName),
				Runtime:      string(fn.Runtime),
				LastModified: aws.ToString(fn.LastModified),
			})
		}
		if out.NextMarker == nil {
			return items, nil
		}
		marker = out.NextMarker
	}
}

func (e *Explorer) listUsers(ctx context.Context) ([]ResourceItem, error) {
	var items []ResourceItem
	var marker *string
	for {
		out, err := e.iamClient.ListUsers(ctx, &iam.ListUsersInput{Marker: marker})
		if err != nil {
			return nil, err
		}
		for _, user := range out.Users {
			item := ResourceItem{Name: aws.ToString(user.UserName)}
			if user.CreateDate != nil {
				item.CreatedAt = user.CreateDate.UTC().Format(time.RFC3339)
			}
			items = append(items, item)
		}
		if !out.IsTruncated {
			return items, nil
		}
		marker = out.Marker
	}
}
