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
	"github.com/shulebox/backend/core/teacher"
)

type teacherItem struct {
	ID               string    `dynamodbav:"teacher_id"`
	Name             string    `dynamodbav:"teacher_name"`
	Email            string    `dynamodbav:"email"`
	PasswordHash     []byte    `dynamodbav:"password_hash"`
	ResponsibleClass []string  `dynamodbav:"responsible_class"`
	IsAdmin          bool      `dynamodbav:"is_admin"`
	LastLogin        time.Time `dynamodbav:"last_login"`
	CreatedAt        time.Time `dynamodbav:"created_at"`
	UpdatedAt        time.Time `dynamodbav:"updated_at"`
}

func packTeacher(t teacher.Teacher) teacherItem {
	item := teacherItem(t)
	item.LastLogin = item.LastLogin.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item
}

func unpackTeacher(item teacherItem) teacher.Teacher {
	return teacher.Teacher(item)
}

type teacherRepository struct {
	db *DB
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(db *DB) *teacherRepository {
	return &teacherRepository{db: db}
}

func (repo teacherRepository) GetTeacher(ctx context.Context, id string) (teacher.Teacher, error) {
	out, err := repo.db.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(repo.db.teacherTable),
		Key:       stringKey("teacher_id", id),
	})
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "getting teacher")
	}
	if out.Item == nil {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	var item teacherItem
	if err = attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "unmarshaling teacher")
	}
	return unpackTeacher(item), nil
}

func (repo teacherRepository) GetTeacherByEmail(ctx context.Context, email string) (teacher.Teacher, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	input := &dynamodb.ScanInput{TableName: aws.String(repo.db.teacherTable)}
	applyFilter(input, map[string]string{"email": email})
	for {
		out, err := repo.db.client.Scan(ctx, input)
		if err != nil {
			return teacher.Teacher{}, errors.Wrap(err, "querying teacher by email")
		}
		if len(out.Items) > 0 {
			var item teacherItem
			if err = attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
				return teacher.Teacher{}, errors.Wrap(err, "unmarshaling teacher")
			}
			return unpackTeacher(item), nil
		}
		if out.LastEvaluatedKey == nil {
			return teacher.Teacher{}, teacher.ErrNotFound
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (repo teacherRepository) QueryTeachers(ctx context.Context) ([]teacher.Teacher, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(repo.db.teacherTable)}
	var teachers []teacher.Teacher
	for {
		out, err := repo.db.client.Scan(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "querying teachers")
		}
		var items []teacherItem
		if err = attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, errors.Wrap(err, "unmarshaling teachers")
		}
		for _, item := range items {
			teachers = append(teachers, unpackTeacher(item))
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return teachers, nil
}

func (repo teacherRepository) PutTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	item, err := attributevalue.MarshalMap(packTeacher(t))
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "marshaling teacher")
	}
	if _, err = repo.db.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(repo.db.teacherTable),
		Item:      item,
	}); err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "upserting teacher")
	}
	return t, nil
}

func (repo teacherRepository) BatchPutTeachers(ctx context.Context, teachers []teacher.Teacher) error {
	berr := core.NewBatchError()
	for _, chunk := range chunkWrites(len(teachers)) {
		batch := teachers[chunk[0]:chunk[1]]
		items := make([]map[string]types.AttributeValue, 0, len(batch))
		for _, t := range batch {
			item, err := attributevalue.MarshalMap(packTeacher(t))
			if err != nil {
				berr.Failed[t.ID] = errors.Wrap(err, "marshaling teacher")
				continue
			}
			items = append(items, item)
		}
		if err := repo.db.batchWrite(ctx, repo.db.teacherTable, items); err != nil {
			for _, t := range batch {
				if _, ierr := repo.PutTeacher(ctx, t); ierr != nil {
					berr.Failed[t.ID] = ierr
				}
			}
		}
	}
	if berr.Empty() {
		return nil
	}
	return berr
}

func (repo teacherRepository) SetTeacherLastLogin(ctx context.Context, id string, t time.Time) error {
	_, err := repo.db.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(repo.db.teacherTable),
		Key:                 stringKey("teacher_id", id),
		UpdateExpression:    aws.String("SET last_login = :t"),
		ConditionExpression: aws.String("attribute_exists(teacher_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": timeAttr(t),
		},
	})
	if err != nil {
		return trapConditionErr(err, teacher.ErrNotFound, "setting teacher last login")
	}
	return nil
}
