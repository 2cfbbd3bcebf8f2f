package relayer

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/apimachinery/pkg/util/wait"
	k8stesting "k8s.io/client-go/testing"
)

const testNamespace = "relayer-test"

func testK8sSupervisor(clientset *fake.Clientset) *K8sSupervisor {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	sup := NewK8sSupervisor(logger, clientset, testNamespace, "chain-a-chain-b", []byte("[global]\nlog_level = 'info'\n"))
	sup.PollInterval = 10 * time.Millisecond
	sup.StartTimeout = 200 * time.Millisecond
	sup.StopTimeout = 500 * time.Millisecond
	return sup
}

// readyClientset reports every created deployment as fully ready, standing in
// for the deployment controller
func readyClientset(objects ...runtime.Object) *fake.Clientset {
	clientset := fake.NewSimpleClientset(objects...)
	clientset.PrependReactor("create", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		d := action.(k8stesting.CreateAction).GetObject().(*appsv1.Deployment)
		if d.Spec.Replicas != nil {
			d.Status.ReadyReplicas = *d.Spec.Replicas
		}
		return false, nil, nil
	})
	return clientset
}

func relayerPod(name string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNamespace,
			Labels: map[string]string{
				appLabel:      "hermes",
				instanceLabel: "chain-a-chain-b",
			},
		},
	}
}

func TestK8sSupervisorStart(t *testing.T) {
	ctx := context.Background()
	clientset := readyClientset()
	sup := testK8sSupervisor(clientset)

	h, err := sup.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "relayer-test/hermes-chain-a-chain-b", h.Name())

	cm, err := clientset.CoreV1().ConfigMaps(testNamespace).Get(ctx, "hermes-config-chain-a-chain-b", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Contains(t, cm.Data["config.toml"], "log_level")

	deployment, err := clientset.AppsV1().Deployments(testNamespace).Get(ctx, "hermes-chain-a-chain-b", metav1.GetOptions{})
	require.NoError(t, err)
	require.Len(t, deployment.Spec.Template.Spec.Containers, 1)
	container := deployment.Spec.Template.Spec.Containers[0]
	assert.Equal(t, DefaultImage, container.Image)
	assert.Equal(t, []string{"hermes", "--config", "/home/hermes/.hermes/config.toml", "start"}, container.Command)
	assert.Equal(t, int32(1), *deployment.Spec.Replicas)
}

func TestK8sSupervisorTelemetryProbe(t *testing.T) {
	sup := testK8sSupervisor(fake.NewSimpleClientset())

	container := sup.deployment().Spec.Template.Spec.Containers[0]
	assert.Empty(t, container.Ports)
	assert.Nil(t, container.ReadinessProbe)

	sup.TelemetryPort = 3001
	container = sup.deployment().Spec.Template.Spec.Containers[0]
	require.Len(t, container.Ports, 1)
	assert.Equal(t, int32(3001), container.Ports[0].ContainerPort)
	require.NotNil(t, container.ReadinessProbe)
	require.NotNil(t, container.ReadinessProbe.HTTPGet)
	assert.Equal(t, "/metrics", container.ReadinessProbe.HTTPGet.Path)
	assert.Equal(t, "telemetry", container.ReadinessProbe.HTTPGet.Port.String())
}

func TestK8sSupervisorStartCleansUpOnFailure(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()
	sup := testK8sSupervisor(clientset)

	// a leftover deployment makes the create fail
	_, err := clientset.AppsV1().Deployments(testNamespace).Create(ctx, sup.deployment(), metav1.CreateOptions{})
	require.NoError(t, err)

	_, err = sup.Start(ctx)
	require.Error(t, err)

	_, err = clientset.CoreV1().ConfigMaps(testNamespace).Get(ctx, sup.configMapName(), metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
}

func TestK8sSupervisorStartWaitsForReadiness(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()
	sup := testK8sSupervisor(clientset)
	sup.StartTimeout = 2 * time.Second

	// the deployment becomes ready a little after it is created
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := wait.PollUntilContextTimeout(ctx, 10*time.Millisecond, time.Second, false, func(ctx context.Context) (bool, error) {
			d, err := clientset.AppsV1().Deployments(testNamespace).Get(ctx, sup.deploymentName(), metav1.GetOptions{})
			if err != nil {
				return false, nil
			}
			d.Status.ReadyReplicas = 1
			_, err = clientset.AppsV1().Deployments(testNamespace).UpdateStatus(ctx, d, metav1.UpdateOptions{})
			return err == nil, nil
		})
		assert.NoError(t, err)
	}()

	h, err := sup.Start(ctx)
	<-done
	require.NoError(t, err)
	assert.Equal(t, "relayer-test/hermes-chain-a-chain-b", h.Name())
}

func TestK8sSupervisorStartNotReady(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()
	sup := testK8sSupervisor(clientset)

	_, err := sup.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")

	_, err = clientset.AppsV1().Deployments(testNamespace).Get(ctx, sup.deploymentName(), metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
	_, err = clientset.CoreV1().ConfigMaps(testNamespace).Get(ctx, sup.configMapName(), metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
}

func TestK8sSupervisorStop(t *testing.T) {
	ctx := context.Background()
	clientset := readyClientset()
	sup := testK8sSupervisor(clientset)

	h, err := sup.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, sup.Stop(ctx, h))

	_, err = clientset.AppsV1().Deployments(testNamespace).Get(ctx, "hermes-chain-a-chain-b", metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
	_, err = clientset.CoreV1().ConfigMaps(testNamespace).Get(ctx, "hermes-config-chain-a-chain-b", metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
}

func TestK8sSupervisorStopWaitsForPods(t *testing.T) {
	ctx := context.Background()
	clientset := readyClientset(relayerPod("hermes-chain-a-chain-b-abc"))
	sup := testK8sSupervisor(clientset)

	h, err := sup.Start(ctx)
	require.NoError(t, err)

	// the pod terminates shortly after the deployment is deleted
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = clientset.CoreV1().Pods(testNamespace).Delete(context.Background(), "hermes-chain-a-chain-b-abc", metav1.DeleteOptions{})
	}()

	require.NoError(t, sup.Stop(ctx, h))
}

func TestK8sSupervisorStopTimesOut(t *testing.T) {
	ctx := context.Background()
	clientset := readyClientset(relayerPod("hermes-chain-a-chain-b-stuck"))
	sup := testK8sSupervisor(clientset)

	h, err := sup.Start(ctx)
	require.NoError(t, err)

	err = sup.Stop(ctx, h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still running")
}

func TestK8sSupervisorIgnoresOtherPods(t *testing.T) {
	ctx := context.Background()
	other := relayerPod("other-relayer")
	other.Labels[instanceLabel] = "chain-c-chain-d"
	clientset := readyClientset(other)
	sup := testK8sSupervisor(clientset)

	h, err := sup.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, sup.Stop(ctx, h))
}
