package relayer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/MoonbridgeInc/hermes/internal/constants"
)

// DefaultImage is the relayer image deployed by K8sSupervisor
const DefaultImage = "informalsystems/hermes:1.13.1"

const (
	appLabel      = "app"
	instanceLabel = "relayer-instance"
	configKey     = "config.toml"

	telemetryPortName = "telemetry"
)

// K8sSupervisor runs the relayer as a single-replica Deployment whose
// config.toml is mounted from a ConfigMap
type K8sSupervisor struct {
	logger    *slog.Logger
	clientset kubernetes.Interface
	namespace string
	instance  string
	config    []byte
	// Image overrides DefaultImage
	Image string
	// TelemetryPort exposes the relayer's metrics endpoint and gates pod
	// readiness on it; zero leaves both out
	TelemetryPort int32
	// PollInterval and StartTimeout bound the wait for the relayer pod to
	// become ready, PollInterval and StopTimeout the wait for it to terminate
	PollInterval time.Duration
	StartTimeout time.Duration
	StopTimeout  time.Duration
}

// NewK8sSupervisor creates a supervisor deploying instance into namespace
// with the rendered relayer config
func NewK8sSupervisor(logger *slog.Logger, clientset kubernetes.Interface, namespace, instance string, config []byte) *K8sSupervisor {
	return &K8sSupervisor{
		logger:       logger,
		clientset:    clientset,
		namespace:    namespace,
		instance:     instance,
		config:       config,
		Image:        DefaultImage,
		PollInterval: constants.DefaultPollInterval,
		StartTimeout: constants.RelayerStartTimeout,
		StopTimeout:  constants.RelayerStopTimeout,
	}
}

type k8sHandle struct {
	namespace string
	name      string
}

func (h *k8sHandle) Name() string {
	return h.namespace + "/" + h.name
}

func (s *K8sSupervisor) deploymentName() string {
	return fmt.Sprintf("hermes-%s", s.instance)
}

func (s *K8sSupervisor) configMapName() string {
	return fmt.Sprintf("hermes-config-%s", s.instance)
}

func (s *K8sSupervisor) labels() map[string]string {
	return map[string]string{
		appLabel:      "hermes",
		instanceLabel: s.instance,
	}
}

// Start creates the ConfigMap and the Deployment and waits until the relayer
// pod is ready. On timeout both are deleted again.
func (s *K8sSupervisor) Start(ctx context.Context) (Handle, error) {
	s.logger.Info("Deploying relayer",
		"instance", s.instance,
		"namespace", s.namespace)

	configMap := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      s.configMapName(),
			Namespace: s.namespace,
			Labels:    s.labels(),
		},
		Data: map[string]string{
			configKey: string(s.config),
		},
	}
	if _, err := s.clientset.CoreV1().ConfigMaps(s.namespace).Create(ctx, configMap, metav1.CreateOptions{}); err != nil {
		return nil, fmt.Errorf("failed to create relayer config: %w", err)
	}

	if _, err := s.clientset.AppsV1().Deployments(s.namespace).Create(ctx, s.deployment(), metav1.CreateOptions{}); err != nil {
		// do not leave the config behind
		if delErr := s.clientset.CoreV1().ConfigMaps(s.namespace).Delete(ctx, s.configMapName(), metav1.DeleteOptions{}); delErr != nil {
			s.logger.Warn("Failed to delete relayer config", "error", delErr)
		}
		return nil, fmt.Errorf("failed to create relayer deployment: %w", err)
	}

	h := &k8sHandle{namespace: s.namespace, name: s.deploymentName()}
	s.logger.Info("Relayer deployment created, waiting for readiness", "deployment", h.Name())

	err := wait.PollUntilContextTimeout(ctx, s.PollInterval, s.StartTimeout, true, func(ctx context.Context) (bool, error) {
		d, err := s.clientset.AppsV1().Deployments(s.namespace).Get(ctx, h.name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		want := int32(1)
		if d.Spec.Replicas != nil {
			want = *d.Spec.Replicas
		}
		return d.Status.ReadyReplicas >= want, nil
	})
	if err != nil {
		s.cleanup(h)
		return nil, fmt.Errorf("relayer deployment %s not ready: %w", h.Name(), err)
	}

	s.logger.Info("Relayer ready", "deployment", h.Name())
	return h, nil
}

// cleanup deletes what Start created without waiting for pods
func (s *K8sSupervisor) cleanup(h *k8sHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), s.StopTimeout)
	defer cancel()

	if err := s.clientset.AppsV1().Deployments(h.namespace).Delete(ctx, h.name, metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
		s.logger.Warn("Failed to delete relayer deployment", "deployment", h.Name(), "error", err)
	}
	if err := s.clientset.CoreV1().ConfigMaps(h.namespace).Delete(ctx, s.configMapName(), metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
		s.logger.Warn("Failed to delete relayer config", "error", err)
	}
}

// deployment builds the Deployment spec
func (s *K8sSupervisor) deployment() *appsv1.Deployment {
	replicas := int32(1)

	d := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      s.deploymentName(),
			Namespace: s.namespace,
			Labels:    s.labels(),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: s.labels(),
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: s.labels(),
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:    "hermes",
							Image:   s.Image,
							Command: []string{"hermes", "--config", "/home/hermes/.hermes/config.toml", "start"},
							Env: []corev1.EnvVar{
								{
									Name:  "RUST_LOG",
									Value: "info",
								},
							},
							VolumeMounts: []corev1.VolumeMount{
								{
									Name:      "hermes-config",
									MountPath: "/home/hermes/.hermes/config.toml",
									SubPath:   configKey,
									ReadOnly:  true,
								},
								{
									Name:      "hermes-keys",
									MountPath: "/home/hermes/.hermes/keys",
								},
							},
							Resources: corev1.ResourceRequirements{
								Requests: corev1.ResourceList{
									corev1.ResourceCPU:    resource.MustParse("100m"),
									corev1.ResourceMemory: resource.MustParse("256Mi"),
								},
								Limits: corev1.ResourceList{
									corev1.ResourceCPU:    resource.MustParse("500m"),
									corev1.ResourceMemory: resource.MustParse("512Mi"),
								},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: "hermes-config",
							VolumeSource: corev1.VolumeSource{
								ConfigMap: &corev1.ConfigMapVolumeSource{
									LocalObjectReference: corev1.LocalObjectReference{
										Name: s.configMapName(),
									},
								},
							},
						},
						{
							Name: "hermes-keys",
							VolumeSource: corev1.VolumeSource{
								Secret: &corev1.SecretVolumeSource{
									SecretName: "hermes-keys",
									Optional:   &[]bool{true}[0],
								},
							},
						},
					},
				},
			},
		},
	}

	if s.TelemetryPort > 0 {
		container := &d.Spec.Template.Spec.Containers[0]
		container.Ports = []corev1.ContainerPort{
			{
				Name:          telemetryPortName,
				ContainerPort: s.TelemetryPort,
				Protocol:      corev1.ProtocolTCP,
			},
		}
		container.ReadinessProbe = &corev1.Probe{
			ProbeHandler: corev1.ProbeHandler{
				HTTPGet: &corev1.HTTPGetAction{
					Path: "/metrics",
					Port: intstr.FromString(telemetryPortName),
				},
			},
			InitialDelaySeconds: 5,
			PeriodSeconds:       10,
		}
	}
	return d
}

// Stop deletes the Deployment and ConfigMap and waits until no relayer pod of
// this instance remains
func (s *K8sSupervisor) Stop(ctx context.Context, h Handle) error {
	kh, ok := h.(*k8sHandle)
	if !ok {
		return fmt.Errorf("unexpected handle type %T", h)
	}

	s.logger.Info("Deleting relayer deployment", "deployment", kh.Name())

	propagation := metav1.DeletePropagationForeground
	err := s.clientset.AppsV1().Deployments(kh.namespace).Delete(ctx, kh.name, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete relayer deployment: %w", err)
	}

	err = s.clientset.CoreV1().ConfigMaps(kh.namespace).Delete(ctx, s.configMapName(), metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		s.logger.Warn("Failed to delete relayer config", "error", err)
	}

	selector := labels.SelectorFromSet(s.labels()).String()
	err = wait.PollUntilContextTimeout(ctx, s.PollInterval, s.StopTimeout, true, func(ctx context.Context) (bool, error) {
		pods, err := s.clientset.CoreV1().Pods(kh.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
		if err != nil {
			return false, err
		}
		return len(pods.Items) == 0, nil
	})
	if err != nil {
		return fmt.Errorf("relayer pods of %s still running: %w", kh.Name(), err)
	}

	s.logger.Info("Relayer stopped", "deployment", kh.Name())
	return nil
}
