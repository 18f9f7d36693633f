package audit

import "fmt"

// AuditWriteError is returned when an entry could not be persisted. Partition is
// set when the entry's month had no partition.
type AuditWriteError struct {
	EventType string
	TableName string
	RecordID  string
	Partition string
	Err       error
}

func (e *AuditWriteError) Error() string {
	if e.Partition != "" {
		return fmt.Sprintf("audit write %s for %s/%s failed: partition %s does not exist",
			e.EventType, e.TableName, e.RecordID, e.Partition)
	}
	return fmt.Sprintf("audit write %s for %s/%s failed: %v", e.EventType, e.TableName, e.RecordID, e.Err)
}

func (e *AuditWriteError) Unwrap() error {
	return e.Err
}

// PartitionMaintenanceError is returned when creating, listing or purging
// partitions fails.
type PartitionMaintenanceError struct {
	Op        string
	Partition string
	Err       error
}

func (e *PartitionMaintenanceError) Error() string {
	if e.Partition == "" {
		return fmt.Sprintf("audit partition %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("audit partition %s of %s failed: %v", e.Op, e.Partition, e.Err)
}

func (e *PartitionMaintenanceError) Unwrap() error {
	return e.Err
}

// RetentionPolicyError is returned for events whose table has no retention tier.
type RetentionPolicyError struct {
	EventType string
	TableName string
}

func (e *RetentionPolicyError) Error() string {
	return fmt.Sprintf("no retention policy for %s on table %q", e.EventType, e.TableName)
}
