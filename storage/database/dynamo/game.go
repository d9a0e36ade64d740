package dynamorepos

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/game"
)

type gameItem struct {
	ID               string    `dynamodbav:"game_id"`
	Name             string    `dynamodbav:"game_name"`
	StudentID        string    `dynamodbav:"student_id"`
	Subject          string    `dynamodbav:"subject"`
	Difficulty       string    `dynamodbav:"difficulty"`
	TeacherID        string    `dynamodbav:"teacher_id"`
	ScratchID        string    `dynamodbav:"scratch_id"`
	ScratchAPI       string    `dynamodbav:"scratch_api"`
	AccumulatedClick int       `dynamodbav:"accumulated_click"`
	CreatedAt        time.Time `dynamodbav:"created_at"`
	UpdatedAt        time.Time `dynamodbav:"updated_at"`
}

func unpackGame(item gameItem) game.Game {
	return game.Game(item)
}

type gameRepository struct {
	db *DB
}

var _ game.Repository = (*gameRepository)(nil)

func NewGameRepository(db *DB) *gameRepository {
	return &gameRepository{db: db}
}

func (repo gameRepository) GetGame(ctx context.Context, id string) (game.Game, error) {
	out, err := repo.db.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(repo.db.gameTable),
		Key:       stringKey("game_id", id),
	})
	if err != nil {
		return game.Game{}, errors.Wrap(err, "getting game")
	}
	if out.Item == nil {
		return game.Game{}, game.ErrNotFound
	}
	var item gameItem
	if err = attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return game.Game{}, errors.Wrap(err, "unmarshaling game")
	}
	return unpackGame(item), nil
}

func (repo gameRepository) QueryGames(ctx context.Context, filter *game.QueryFilter, ordering []core.DBOrdering) ([]game.Game, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(repo.db.gameTable)}
	if filter != nil {
		filter.Clean()
		applyFilter(input, map[string]string{
			"subject":    filter.Subject,
			"difficulty": filter.Difficulty,
			"teacher_id": filter.TeacherID,
			"student_id": filter.StudentID,
		})
	}
	var games []game.Game
	for {
		out, err := repo.db.client.Scan(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "querying games")
		}
		var items []gameItem
		if err = attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, errors.Wrap(err, "unmarshaling games")
		}
		for _, item := range items {
			games = append(games, unpackGame(item))
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	orderGames(games, ordering)
	return games, nil
}

// orderGames sorts a scanned page set client side; scans come back in key
// order which is not a useful ordering for callers.
func orderGames(games []game.Game, ordering []core.DBOrdering) {
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	for k := len(ordering) - 1; k >= 0; k-- { // apply in reverse for precedence
		ord := ordering[k]
		sort.SliceStable(games, func(i, j int) bool {
			var less bool
			switch ord.Field {
			case "accumulated_click":
				less = games[i].AccumulatedClick < games[j].AccumulatedClick
			case "game_name":
				less = games[i].Name < games[j].Name
			case "created_at":
				less = games[i].CreatedAt.Before(games[j].CreatedAt)
			default:
				less = games[i].ID < games[j].ID
			}
			if ord.Ascending {
				return less
			}
			return !less
		})
	}
}

// PutGame upserts through an update expression so that, on existing items,
// accumulated_click and created_at keep their stored values; the counter only
// moves through IncrementClick.
func (repo gameRepository) PutGame(ctx context.Context, g game.Game) (game.Game, error) {
	_, err := repo.db.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(repo.db.gameTable),
		Key:       stringKey("game_id", g.ID),
		UpdateExpression: aws.String("SET game_name = :name, student_id = :sid, subject = :subj, " +
			"difficulty = :diff, teacher_id = :tid, scratch_id = :scid, scratch_api = :sapi, " +
			"updated_at = :upd, created_at = if_not_exists(created_at, :crt), " +
			"accumulated_click = if_not_exists(accumulated_click, :clicks)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":name":   &types.AttributeValueMemberS{Value: g.Name},
			":sid":    &types.AttributeValueMemberS{Value: g.StudentID},
			":subj":   &types.AttributeValueMemberS{Value: g.Subject},
			":diff":   &types.AttributeValueMemberS{Value: g.Difficulty},
			":tid":    &types.AttributeValueMemberS{Value: g.TeacherID},
			":scid":   &types.AttributeValueMemberS{Value: g.ScratchID},
			":sapi":   &types.AttributeValueMemberS{Value: g.ScratchAPI},
			":upd":    timeAttr(g.UpdatedAt),
			":crt":    timeAttr(g.CreatedAt),
			":clicks": &types.AttributeValueMemberN{Value: strconv.Itoa(g.AccumulatedClick)},
		},
	})
	if err != nil {
		return game.Game{}, errors.Wrap(err, "upserting game")
	}
	return g, nil
}

// BatchPutGames writes one item at a time: BatchWriteItem cannot express the
// update expression the game upsert relies on.
func (repo gameRepository) BatchPutGames(ctx context.Context, games []game.Game) error {
	berr := core.NewBatchError()
	for _, g := range games {
		if _, err := repo.PutGame(ctx, g); err != nil {
			berr.Failed[g.ID] = err
		}
	}
	if berr.Empty() {
		return nil
	}
	return berr
}

// IncrementClick is a single atomic ADD; concurrent clicks never lose
// updates.
func (repo gameRepository) IncrementClick(ctx context.Context, id string) (int, error) {
	out, err := repo.db.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(repo.db.gameTable),
		Key:                 stringKey("game_id", id),
		UpdateExpression:    aws.String("SET updated_at = :now ADD accumulated_click :one"),
		ConditionExpression: aws.String("attribute_exists(game_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":now": timeAttr(time.Now()),
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, trapConditionErr(err, game.ErrNotFound, "incrementing click")
	}
	count, ok := out.Attributes["accumulated_click"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("incrementing click: no updated count returned")
	}
	n, err := strconv.Atoi(count.Value)
	if err != nil {
		return 0, errors.Wrap(err, "parsing updated count")
	}
	return n, nil
}
