package driver

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"nodescaler/pkg/cloud"
	"nodescaler/pkg/config"
	"nodescaler/pkg/orchestrator"
)

func fakeNode(name, asg, az, cpu, mem, pods string) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: map[string]string{
				"eks.amazonaws.com/nodegroup": asg,
				"topology.kubernetes.io/zone": az,
			},
		},
		Status: corev1.NodeStatus{
			Conditions: []corev1.NodeCondition{{Type: corev1.NodeReady, Status: corev1.ConditionTrue}},
			Allocatable: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse(cpu),
				corev1.ResourceMemory: resource.MustParse(mem),
				corev1.ResourcePods:   resource.MustParse(pods),
			},
		},
	}
}

func fakePod(name, node, cpu, mem string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Spec: corev1.PodSpec{
			NodeName: node,
			Containers: []corev1.Container{{
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse(cpu),
						corev1.ResourceMemory: resource.MustParse(mem),
					},
				},
			}},
		},
		Status: corev1.PodStatus{Phase: corev1.PodRunning},
	}
}

func TestDriver_OnceRunsSingleIterationAndKeepsSteadyState(t *testing.T) {
	nodes := []*corev1.Node{
		fakeNode("n1", "A", "az1", "4000m", "8Gi", "110"),
		fakeNode("n2", "A", "az2", "4000m", "8Gi", "110"),
	}
	pods := []*corev1.Pod{
		fakePod("p1", "n1", "500m", "1Gi"),
		fakePod("p2", "n2", "500m", "1Gi"),
	}
	reader := orchestrator.NewFakeReader(nodes, pods)
	client := cloud.NewFakeClient(cloud.ASGInfo{Name: "A", Min: 1, Max: 10, Desired: 2})

	cfg := config.DefaultConfig()
	cfg.Once = true

	d := New(cfg, reader, client)
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := client.Desired("A")
	if got != 2 {
		t.Errorf("expected desired capacity unchanged at 2, got %d", got)
	}
	if !d.Health().Snapshot().Healthy {
		t.Error("expected driver to report healthy after a successful iteration")
	}
}

func TestDriver_SnapshotErrorRecordedButProcessSurvives(t *testing.T) {
	reader := orchestrator.NewFakeReader(nil, nil)
	client := &erroringCloudClient{}

	cfg := config.DefaultConfig()
	cfg.Once = true

	d := New(cfg, reader, client)
	err := d.Run(context.Background())
	if err == nil {
		t.Fatal("expected Run to surface the describe_asgs snapshot error")
	}
	status := d.Health().Snapshot()
	if status.Healthy {
		t.Error("expected driver to report unhealthy after a snapshot error")
	}
}

// A cloud-known AZ with zero live nodes must still receive a required node
// count and be scalable from zero, even though the ASG has live nodes
// elsewhere: the cloud-reported AZs span is what seeds the partition, not
// node presence.
func TestDriver_ZeroNodeAZStillReceivesDecision(t *testing.T) {
	nodes := []*corev1.Node{
		fakeNode("n1", "A", "az1", "4000m", "8Gi", "110"),
	}
	reader := orchestrator.NewFakeReader(nodes, nil)
	client := cloud.NewFakeClient(cloud.ASGInfo{
		Name: "A", Min: 1, Max: 10, Desired: 1, AZs: []string{"az1", "az2"},
	})

	cfg := config.DefaultConfig()
	cfg.Once = true

	d := New(cfg, reader, client)
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := client.Desired("A")
	if got < 2 {
		t.Errorf("expected az2's empty partition to add at least one required node on top of az1, got desired=%d", got)
	}
}

type erroringCloudClient struct{}

func (e *erroringCloudClient) DescribeASGs(ctx context.Context, names ...string) ([]cloud.ASGInfo, error) {
	return nil, errBoom{}
}

func (e *erroringCloudClient) SetDesiredCapacity(ctx context.Context, name string, value int32) error {
	return nil
}

type errBoom struct{}

func (errBoom) Error() string { return "describe_asgs unavailable" }
