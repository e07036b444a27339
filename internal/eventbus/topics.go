package eventbus

// Well-known topics published by the core, per spec §6.
const (
	TopicSchedulerTick        Topic = "scheduler:tick"
	TopicSyncPull             Topic = "sync:pull"
	TopicSyncPush             Topic = "sync:push"
	TopicRequestClaimed       Topic = "request:claimed"
	TopicRequestCompleted     Topic = "request:completed"
	TopicRequestFailed        Topic = "request:failed"
	TopicWorkerStarted        Topic = "worker:started"
	TopicWorkerOutput         Topic = "worker:output"
	TopicDirectivePhaseChange Topic = "directive:phase-change"
	TopicDirectiveTestResult  Topic = "directive:test-result"
	TopicServiceAdded         Topic = "service:added"
	TopicServiceRemoved       Topic = "service:removed"
)
