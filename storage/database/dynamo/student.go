package dynamorepos

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/student"
)

type studentItem struct {
	ID           string    `dynamodbav:"student_id"`
	Name1        string    `dynamodbav:"name_1"`
	Name2        string    `dynamodbav:"name_2"`
	Marks        int       `dynamodbav:"marks"`
	Class        string    `dynamodbav:"class"`
	ClassNo      int       `dynamodbav:"class_no"`
	TeacherID    string    `dynamodbav:"teacher_id"`
	PasswordHash []byte    `dynamodbav:"password_hash"`
	LastLogin    time.Time `dynamodbav:"last_login"`
	LastUpdate   time.Time `dynamodbav:"last_update"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
	UpdatedAt    time.Time `dynamodbav:"updated_at"`
}

func packStudent(s student.Student) studentItem {
	item := studentItem(s)
	item.LastLogin = item.LastLogin.UTC()
	item.LastUpdate = item.LastUpdate.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item
}

func unpackStudent(item studentItem) student.Student {
	return student.Student(item)
}

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	out, err := repo.db.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(repo.db.studentTable),
		Key:       stringKey("student_id", id),
	})
	if err != nil {
		return student.Student{}, errors.Wrap(err, "getting student")
	}
	if out.Item == nil {
		return student.Student{}, student.ErrNotFound
	}
	var item studentItem
	if err = attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return student.Student{}, errors.Wrap(err, "unmarshaling student")
	}
	return unpackStudent(item), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter) ([]student.Student, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(repo.db.studentTable)}
	if filter != nil {
		filter.Clean()
		applyFilter(input, map[string]string{
			"class":      filter.Class,
			"teacher_id": filter.TeacherID,
		})
	}
	var students []student.Student
	for {
		out, err := repo.db.client.Scan(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "querying students")
		}
		var items []studentItem
		if err = attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, errors.Wrap(err, "unmarshaling students")
		}
		for _, item := range items {
			students = append(students, unpackStudent(item))
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return students, nil
}

func (repo studentRepository) PutStudent(ctx context.Context, s student.Student) (student.Student, error) {
	item, err := attributevalue.MarshalMap(packStudent(s))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "marshaling student")
	}
	if _, err = repo.db.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(repo.db.studentTable),
		Item:      item,
	}); err != nil {
		return student.Student{}, errors.Wrap(err, "upserting student")
	}
	return s, nil
}

func (repo studentRepository) BatchPutStudents(ctx context.Context, students []student.Student) error {
	berr := core.NewBatchError()
	for _, chunk := range chunkWrites(len(students)) {
		batch := students[chunk[0]:chunk[1]]
		items := make([]map[string]types.AttributeValue, 0, len(batch))
		for _, s := range batch {
			item, err := attributevalue.MarshalMap(packStudent(s))
			if err != nil {
				berr.Failed[s.ID] = errors.Wrap(err, "marshaling student")
				continue
			}
			items = append(items, item)
		}
		if err := repo.db.batchWrite(ctx, repo.db.studentTable, items); err != nil {
			for _, s := range batch {
				if _, ierr := repo.PutStudent(ctx, s); ierr != nil {
					berr.Failed[s.ID] = ierr
				}
			}
		}
	}
	if berr.Empty() {
		return nil
	}
	return berr
}

func (repo studentRepository) SetStudentLastLogin(ctx context.Context, id string, t time.Time) error {
	_, err := repo.db.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(repo.db.studentTable),
		Key:                 stringKey("student_id", id),
		UpdateExpression:    aws.String("SET last_login = :t"),
		ConditionExpression: aws.String("attribute_exists(student_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": timeAttr(t),
		},
	})
	if err != nil {
		return trapConditionErr(err, student.ErrNotFound, "setting student last login")
	}
	return nil
}
