// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package core

// Operation represents an entity lifecycle operation, one of Create, Read, Update, Delete, List
type Operation string

// all supported entity operations
const (
	OperationCreate  Operation = "create"
	OperationRead    Operation = "read"
	OperationUpdate  Operation = "update"
	OperationDestroy Operation = "destroy"
	OperationList    Operation = "list"
)

// Notifier is an interface to receive entity lifecycle notifications. The payload
// is the JSON representation of the entity after the operation succeeded.
type Notifier interface {
	Notify(resource string, operation Operation, payload []byte)
}
